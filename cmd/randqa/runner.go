package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AmmannChristian/go-authx/grpcclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AmmannChristian/randqa/internal/config"
	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/report"
	"github.com/AmmannChristian/randqa/internal/service"
	"github.com/AmmannChristian/randqa/internal/source"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1 // input could not be read or analysed
	exitUsage    = 2
	exitRejected = 3 // --fail-on-reject and the overall verdict is FAIL
)

// exitError carries a non-usage exit code out of a cobra command. Any other
// error returned by Execute is a usage error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func failure(err error) error {
	return &exitError{code: exitFailure, err: err}
}

var errRejected = errors.New("the sequence failed the randomness assessment")

// analyzer is implemented by the in-process service and the remote client.
type analyzer interface {
	Analyze(context.Context, *service.AnalyzeRequest) (*service.AnalyzeResponse, error)
}

// runCLI executes the randqa command tree and returns the process exit code:
// 0 on success, 1 on analysis error, 2 on invalid usage and 3 when
// --fail-on-reject is set and the sequence is rejected.
func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
	return exitUsage
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "randqa",
		Short:         "Randomness quality assessment (NIST SP 800-22 / SP 800-90B)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return failure(err)
			}
			return nil
		},
	}

	root.AddCommand(
		newAnalyzeCmd(),
		newTrialsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "randqa version %s\n", service.Version)
		},
	}
}

// paramFlags binds the analysis parameters to command-line flags.
type paramFlags struct {
	blockSize     int
	patternLength int
	rctCutoff     int
	aptWindow     int
	alpha         float64
	minEntropy    float64
	noFDR         bool
}

func (p *paramFlags) register(fs *pflag.FlagSet) {
	d := randomness.DefaultParams()
	fs.IntVar(&p.blockSize, "block-size", d.BlockSize, "Block frequency block length M")
	fs.IntVar(&p.patternLength, "pattern-length", d.PatternLength, "Approximate entropy pattern length m")
	fs.IntVar(&p.rctCutoff, "rct-cutoff", d.RCTCutoff, "Repetition count test cutoff")
	fs.IntVar(&p.aptWindow, "apt-window", d.APTWindow, "Adaptive proportion test window")
	fs.Float64Var(&p.alpha, "alpha", d.Alpha, "Significance level")
	fs.Float64Var(&p.minEntropy, "min-entropy", d.MinEntropy, "Assumed min-entropy per bit for the RCT")
	fs.BoolVar(&p.noFDR, "no-fdr", false, "Judge tests on raw p-values instead of Benjamini-Hochberg q-values")
}

func (p *paramFlags) params() randomness.Params {
	return randomness.Params{
		BlockSize:     p.blockSize,
		PatternLength: p.patternLength,
		RCTCutoff:     p.rctCutoff,
		APTWindow:     p.aptWindow,
		Alpha:         p.alpha,
		MinEntropy:    p.minEntropy,
		FDREnabled:    !p.noFDR,
	}
}

// override returns only the parameters set explicitly on the command line,
// so a remote service keeps its own defaults for the rest.
func (p *paramFlags) override(fs *pflag.FlagSet) *service.ParamsOverride {
	var o service.ParamsOverride
	set := false
	if fs.Changed("block-size") {
		o.BlockSize, set = &p.blockSize, true
	}
	if fs.Changed("pattern-length") {
		o.PatternLength, set = &p.patternLength, true
	}
	if fs.Changed("rct-cutoff") {
		o.RCTCutoff, set = &p.rctCutoff, true
	}
	if fs.Changed("apt-window") {
		o.APTWindow, set = &p.aptWindow, true
	}
	if fs.Changed("alpha") {
		o.Alpha, set = &p.alpha, true
	}
	if fs.Changed("min-entropy") {
		o.MinEntropy, set = &p.minEntropy, true
	}
	if fs.Changed("no-fdr") {
		enabled := !p.noFDR
		o.FDREnabled, set = &enabled, true
	}
	if !set {
		return nil
	}
	return &o
}

// remoteFlags configures the connection to a remote assessment service.
type remoteFlags struct {
	addr         string
	caFile       string
	certFile     string
	keyFile      string
	serverName   string
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       string
}

func (r *remoteFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&r.addr, "remote", "", "Address of a randqa gRPC service; analyse remotely instead of in-process")
	fs.StringVar(&r.caFile, "tls-ca", "", "CA certificate for the remote service (enables TLS)")
	fs.StringVar(&r.certFile, "tls-cert", "", "Client certificate for mTLS")
	fs.StringVar(&r.keyFile, "tls-key", "", "Client key for mTLS")
	fs.StringVar(&r.serverName, "tls-server-name", "", "Expected server name in the remote certificate")
	fs.StringVar(&r.tokenURL, "oauth2-token-url", "", "OAuth2 token endpoint (enables client credentials)")
	fs.StringVar(&r.clientID, "oauth2-client-id", "", "OAuth2 client ID")
	fs.StringVar(&r.clientSecret, "oauth2-client-secret", "", "OAuth2 client secret (default $RANDQA_OAUTH2_CLIENT_SECRET)")
	fs.StringVar(&r.scopes, "oauth2-scopes", "", "Space-separated OAuth2 scopes")
}

func (r *remoteFlags) dial(ctx context.Context) (*grpc.ClientConn, error) {
	builder := grpcclient.NewBuilder().WithAddress(r.addr)

	if r.tokenURL != "" {
		secret := r.clientSecret
		if secret == "" {
			secret = os.Getenv("RANDQA_OAUTH2_CLIENT_SECRET")
		}
		builder = builder.WithOAuth2(r.tokenURL, r.clientID, secret, r.scopes)
	}

	if r.caFile != "" || r.certFile != "" {
		builder = builder.WithTLS(r.caFile, r.certFile, r.keyFile, r.serverName)
	} else {
		builder = builder.WithDialOptions(grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", r.addr, err)
	}
	return conn, nil
}

type analyzeOptions struct {
	hex          string
	text         string
	source       string
	seed         uint64
	bits         int
	bitOrder     string
	format       string
	output       string
	outDir       string
	maxBits      int
	failOnReject bool
	verbose      bool
	timeout      time.Duration
	params       paramFlags
	remote       remoteFlags
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Run the statistical and health test battery on one sequence",
		Long: `Run the monobit, runs, block frequency and approximate entropy tests plus
the repetition count and adaptive proportion health tests on one sequence.

The input is a binary file, standard input ("-" or no argument), a hex
string (--hex), a string of 0/1 characters (--text) or a built-in generator
(--source lcg|xorshift|osrandom with --seed and --bits).

Examples:
  randqa analyze --source lcg --seed 42 --bits 100000
  randqa analyze data.bin --format json --output report.json
  head -c 125000 /dev/urandom | randqa analyze --fail-on-reject
  randqa analyze --remote localhost:9090 --source xorshift`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, &opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.hex, "hex", "", "Analyse the bytes of a hex string")
	fs.StringVar(&opts.text, "text", "", "Analyse a string of '0' and '1' characters")
	fs.StringVar(&opts.source, "source", "", "Generate the input with a built-in generator")
	fs.Uint64Var(&opts.seed, "seed", source.DefaultSeed, "Seed for deterministic generators")
	fs.IntVar(&opts.bits, "bits", 0, "Number of bits to analyse (generators default to 100000, other inputs to all bits)")
	fs.StringVar(&opts.bitOrder, "bit-order", "lsb", "Bit order used to unpack bytes: lsb or msb")
	fs.StringVarP(&opts.format, "format", "f", "markdown", "Output format: markdown or json")
	fs.StringVarP(&opts.output, "output", "o", "", "Write the report to this file instead of stdout")
	fs.StringVar(&opts.outDir, "out-dir", "", "Also write report.json and report.md into this directory")
	fs.IntVar(&opts.maxBits, "max-bits", 10_000_000, "Refuse inputs longer than this many bits")
	fs.BoolVar(&opts.failOnReject, "fail-on-reject", false, "Exit with status 3 when the overall verdict is FAIL")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log per-test details to stderr")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Deadline for a remote analysis")
	opts.params.register(fs)
	opts.remote.register(fs)

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	if opts.format != "markdown" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (use markdown or json)", opts.format)
	}

	inputs := 0
	for _, set := range []bool{len(args) > 0, opts.hex != "", opts.text != "", opts.source != ""} {
		if set {
			inputs++
		}
	}
	if inputs > 1 {
		return errors.New("a file argument, --hex, --text and --source are mutually exclusive")
	}
	if opts.source != "" {
		if _, err := source.New(opts.source, opts.seed); err != nil {
			return err
		}
	}

	req := &service.AnalyzeRequest{
		Hex:      opts.hex,
		Text:     opts.text,
		Source:   opts.source,
		Bits:     opts.bits,
		BitOrder: opts.bitOrder,
		Params:   opts.params.override(cmd.Flags()),
	}
	if opts.source != "" {
		seed := opts.seed
		req.Seed = &seed
	}
	if inputs == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return failure(fmt.Errorf("reading from stdin: %w", err))
		}
		req.Data, req.Label = data, "stdin"
	} else if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return failure(fmt.Errorf("reading file %s: %w", args[0], err))
		}
		req.Data, req.Label = data, filepath.Base(args[0])
	}
	if req.Hex == "" && req.Text == "" && req.Source == "" && len(req.Data) == 0 {
		return failure(errors.New("input is empty"))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var engine analyzer
	if opts.remote.addr != "" {
		conn, err := opts.remote.dial(ctx)
		if err != nil {
			return failure(err)
		}
		defer conn.Close()
		engine = service.NewClient(conn)

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	} else {
		engine = service.NewService(randomness.DefaultParams(), opts.maxBits, cliLogger(cmd.ErrOrStderr(), opts.verbose))
	}

	resp, err := engine.Analyze(ctx, req)
	if err != nil {
		return failure(err)
	}
	doc := resp.Report

	if err := emit(cmd.OutOrStdout(), doc, opts); err != nil {
		return failure(err)
	}

	if opts.failOnReject && !doc.Results.Decisions.OverallPass {
		return &exitError{code: exitRejected, err: errRejected}
	}
	return nil
}

func emit(stdout io.Writer, doc report.Document, opts *analyzeOptions) error {
	render := func(w io.Writer) error {
		if opts.format == "json" {
			return writeJSON(w, doc)
		}
		_, err := io.WriteString(w, report.Markdown(doc))
		return err
	}

	if opts.outDir != "" {
		if err := writeFile(filepath.Join(opts.outDir, "report.json"), func(w io.Writer) error { return writeJSON(w, doc) }); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(opts.outDir, "report.md"), func(w io.Writer) error {
			_, err := io.WriteString(w, report.Markdown(doc))
			return err
		}); err != nil {
			return err
		}
	}

	if opts.output != "" {
		if err := writeFile(opts.output, render); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Results written to %s\n", opts.output)
		return nil
	}
	return render(stdout)
}

// cliLogger writes warnings, and with verbose also debug output, to w.
func cliLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}
