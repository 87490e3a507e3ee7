package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/source"
	"github.com/AmmannChristian/randqa/internal/trials"
)

type trialsOptions struct {
	source    string
	firstSeed uint64
	count     int
	bits      int
	format    string
	verbose   bool
	params    paramFlags
}

func newTrialsCmd() *cobra.Command {
	var opts trialsOptions

	cmd := &cobra.Command{
		Use:   "trials",
		Short: "Analyse many seeds of a generator and summarise the p-values",
		Long: `Analyse one sequence per seed and summarise each test's p-values: mean,
median, spread, pass proportion against its lower acceptance bound, and a
ten-bin uniformity p-value. A sound generator shows pass proportions above
the bound and uniformity p-values that are not tiny.

Example:
  randqa trials --source xorshift --trials 100 --bits 100000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrials(cmd, &opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.source, "source", source.NameXorShift, "Generator to evaluate: lcg, xorshift or osrandom")
	fs.Uint64Var(&opts.firstSeed, "first-seed", 0x9E3779B9, "Seed of the first trial; later trials count up from it")
	fs.IntVar(&opts.count, "trials", 20, "Number of trials")
	fs.IntVar(&opts.bits, "bits", randomness.RecommendedBits, "Bits per trial")
	fs.StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log per-trial progress to stderr")
	opts.params.register(fs)

	return cmd
}

func runTrials(cmd *cobra.Command, opts *trialsOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (use text or json)", opts.format)
	}
	if opts.count < 1 {
		return fmt.Errorf("--trials must be positive, got %d", opts.count)
	}
	if opts.bits < 1 {
		return fmt.Errorf("--bits must be positive, got %d", opts.bits)
	}
	if _, err := source.New(opts.source, opts.firstSeed); err != nil {
		return err
	}
	params := opts.params.params()
	if err := params.Validate(); err != nil {
		return err
	}

	runner := trials.NewRunner(cliLogger(cmd.ErrOrStderr(), opts.verbose))
	summary, err := runner.Run(cmd.Context(), trials.SourceFactory(opts.source), trials.Seeds(opts.firstSeed, opts.count), opts.bits, params)
	if err != nil {
		return failure(err)
	}

	if opts.format == "json" {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	return writeSummary(cmd.OutOrStdout(), opts.source, summary)
}

func writeSummary(w io.Writer, name string, s *trials.Summary) error {
	fmt.Fprintf(w, "Source: %s, %d trials of %d bits, alpha=%g\n\n", name, s.Trials, s.Bits, s.Alpha)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tMEAN P\tMEDIAN\tSTDDEV\tMIN\tMAX\tPASS\tBOUND\tUNIFORMITY P")
	for _, t := range s.Tests {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.3f\t%.3f\t%.4f\n",
			t.Name, t.Mean, t.Median, t.StdDev, t.Min, t.Max, t.PassProportion, t.ProportionLower, t.Uniformity)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nRCT failures: %d, APT failures: %d, overall pass rate: %.3f\n",
		s.RCTFailures, s.APTFailures, s.OverallPassRate)
	return nil
}
