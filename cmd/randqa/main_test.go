package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/report"
	"github.com/AmmannChristian/randqa/internal/service"
	"github.com/AmmannChristian/randqa/internal/source"
	"github.com/AmmannChristian/randqa/internal/trials"
)

func run(t *testing.T, stdin []byte, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := runCLI(args, bytes.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func xorshiftBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := source.NewXorShift32(0x9E3779B9).Read(data)
	require.NoError(t, err)
	return data
}

func TestRunCLI_Version(t *testing.T) {
	code, out, _ := run(t, nil, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "randqa version "+service.Version)
}

func TestRunCLI_UsageErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"unknown flag", []string{"analyze", "--nope"}, "unknown flag"},
		{"bad format", []string{"analyze", "--source", "lcg", "--format", "xml"}, "unknown format"},
		{"two inputs", []string{"analyze", "--hex", "ff", "--text", "01"}, "mutually exclusive"},
		{"unknown source", []string{"analyze", "--source", "mersenne"}, "unknown source"},
		{"too many args", []string{"analyze", "a.bin", "b.bin"}, "accepts at most 1 arg"},
		{"trials count", []string{"trials", "--trials", "0"}, "--trials must be positive"},
		{"trials params", []string{"trials", "--alpha", "2"}, "alpha"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := run(t, nil, tc.args...)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, errOut, tc.want)
			assert.Contains(t, errOut, "--help")
		})
	}
}

func TestRunCLI_AnalyzeWeakLCGMarkdown(t *testing.T) {
	code, out, _ := run(t, nil, "analyze", "--source", "lcg", "--seed", "42", "--bits", "100000")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "# randqa Report")
	assert.Contains(t, out, "- **Source:** lcg")
	assert.Contains(t, out, "- **Seed:** 42")
	assert.Contains(t, out, "- Overall (FDR): **FAIL**")
}

func TestRunCLI_FailOnReject(t *testing.T) {
	code, _, errOut := run(t, nil, "analyze", "--source", "lcg", "--bits", "100000", "--fail-on-reject")
	assert.Equal(t, exitRejected, code)
	assert.Contains(t, errOut, errRejected.Error())
}

func TestRunCLI_AnalyzeStdinJSON(t *testing.T) {
	code, out, _ := run(t, xorshiftBytes(t, 2048), "analyze", "--format", "json", "--block-size", "64")
	require.Equal(t, exitOK, code)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "stdin", doc.Source)
	assert.Equal(t, 2048*8, doc.Bits)
	assert.Equal(t, 64, doc.BlockSize)
	assert.Nil(t, doc.Seed)
}

func TestRunCLI_AnalyzeFileWithOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.bin")
	require.NoError(t, os.WriteFile(input, xorshiftBytes(t, 4096), 0o600))

	output := filepath.Join(dir, "out", "report.json")
	outDir := filepath.Join(dir, "results")
	code, out, _ := run(t, nil, "analyze", input, "-f", "json", "-o", output, "--out-dir", outDir, "--bit-order", "msb")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Results written to "+output)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var doc report.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "sample.bin", doc.Source)
	assert.Equal(t, "msb", doc.BitOrder)

	md, err := os.ReadFile(filepath.Join(outDir, "report.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# randqa Report"))
	_, err = os.Stat(filepath.Join(outDir, "report.json"))
	assert.NoError(t, err)
}

func TestRunCLI_AnalyzeFailures(t *testing.T) {
	cases := []struct {
		name  string
		stdin []byte
		args  []string
		want  string
	}{
		{"file not found", nil, []string{"analyze", "nope.bin"}, "reading file nope.bin"},
		{"empty stdin", nil, []string{"analyze"}, "input is empty"},
		{"bad hex", nil, []string{"analyze", "--hex", "xyz"}, "FromHex"},
		{"non-binary text", nil, []string{"analyze", "--text", "0102"}, "bit values must be 0 or 1"},
		{"over max bits", nil, []string{"analyze", "--source", "lcg", "--bits", "5000", "--max-bits", "1000"}, "limit is 1000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := run(t, tc.stdin, tc.args...)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, errOut, tc.want)
		})
	}
}

func TestRunCLI_AnalyzeRemote(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on tcp :0: %v", err)
	}
	server := grpc.NewServer()
	service.RegisterRandomnessAssessmentServer(server, service.NewGRPCServer(
		service.NewService(randomness.DefaultParams(), 1_000_000, zerolog.Nop())))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	code, out, errOut := run(t, nil, "analyze", "--remote", lis.Addr().String(),
		"--source", "lcg", "--bits", "100000", "--format", "json", "--no-fdr")
	require.Equal(t, exitOK, code, errOut)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "lcg", doc.Source)
	assert.False(t, doc.Results.FDREnabled)
	assert.False(t, doc.Results.Decisions.OverallPass)
}

func TestRunCLI_Trials(t *testing.T) {
	code, out, _ := run(t, nil, "trials", "--trials", "5", "--bits", "20000", "--format", "json")
	require.Equal(t, exitOK, code)

	var summary trials.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 5, summary.Trials)
	assert.Equal(t, 20000, summary.Bits)
	assert.Len(t, summary.Tests, len(randomness.StatisticalTests))

	code, out, _ = run(t, nil, "trials", "--source", "lcg", "--trials", "3", "--bits", "10000")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Source: lcg, 3 trials of 10000 bits")
	assert.Contains(t, out, "UNIFORMITY P")
	assert.Contains(t, out, "overall pass rate: 0.000")
}

func TestParamFlagsOverride(t *testing.T) {
	var p paramFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	p.register(fs)
	require.NoError(t, fs.Parse(nil))
	assert.Nil(t, p.override(fs))
	assert.Equal(t, randomness.DefaultParams(), p.params())

	p = paramFlags{}
	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	p.register(fs)
	require.NoError(t, fs.Parse([]string{"--alpha", "0.05", "--no-fdr", "--apt-window", "1024"}))

	o := p.override(fs)
	require.NotNil(t, o)
	require.NotNil(t, o.Alpha)
	assert.Equal(t, 0.05, *o.Alpha)
	require.NotNil(t, o.FDREnabled)
	assert.False(t, *o.FDREnabled)
	require.NotNil(t, o.APTWindow)
	assert.Equal(t, 1024, *o.APTWindow)
	assert.Nil(t, o.BlockSize)
	assert.Nil(t, o.RCTCutoff)
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"bits": 8}))
	assert.Equal(t, "{\n  \"bits\": 8\n}\n", buf.String())
}
