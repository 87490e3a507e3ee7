// Package service implements the business and transport layers of the
// randomness assessment service. AnalysisService resolves the input and runs
// the battery, while GRPCServer and HTTPHandler expose it over gRPC and HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/AmmannChristian/randqa/internal/advisor"
	"github.com/AmmannChristian/randqa/internal/heuristics"
	"github.com/AmmannChristian/randqa/internal/metrics"
	"github.com/AmmannChristian/randqa/internal/middleware"
	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/report"
	"github.com/AmmannChristian/randqa/internal/source"
)

// Version is reported by the health endpoint and embedded in every report.
const Version = "1.0.0"

var (
	// ErrInvalidRequest marks requests that cannot be analysed as given.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", randomness.ErrInvalidInput)
	// ErrTooLarge marks inputs longer than the configured bit limit.
	ErrTooLarge = fmt.Errorf("%w: input exceeds bit limit", randomness.ErrInvalidInput)
)

// AnalyzeRequest selects the input and optional parameter overrides of one
// analysis. Exactly one of Data, Hex, Text and Source must be set.
type AnalyzeRequest struct {
	Data     []byte          `json:"data,omitempty"`
	Hex      string          `json:"hex,omitempty"`
	Text     string          `json:"text,omitempty"`
	Source   string          `json:"source,omitempty"`
	Seed     *uint64         `json:"seed,omitempty"`
	Bits     int             `json:"bits,omitempty"`
	BitOrder string          `json:"bit_order,omitempty"`
	Label    string          `json:"label,omitempty"`
	Params   *ParamsOverride `json:"params,omitempty"`
}

// ParamsOverride replaces individual analysis defaults. Nil fields keep the
// service default.
type ParamsOverride struct {
	BlockSize     *int     `json:"block_size,omitempty"`
	PatternLength *int     `json:"apen_pattern_length,omitempty"`
	RCTCutoff     *int     `json:"rct_cutoff,omitempty"`
	APTWindow     *int     `json:"apt_window,omitempty"`
	Alpha         *float64 `json:"alpha,omitempty"`
	MinEntropy    *float64 `json:"min_entropy,omitempty"`
	FDREnabled    *bool    `json:"fdr_enabled,omitempty"`
}

// Apply returns p with every non-nil override applied.
func (o *ParamsOverride) Apply(p randomness.Params) randomness.Params {
	if o == nil {
		return p
	}
	if o.BlockSize != nil {
		p.BlockSize = *o.BlockSize
	}
	if o.PatternLength != nil {
		p.PatternLength = *o.PatternLength
	}
	if o.RCTCutoff != nil {
		p.RCTCutoff = *o.RCTCutoff
	}
	if o.APTWindow != nil {
		p.APTWindow = *o.APTWindow
	}
	if o.Alpha != nil {
		p.Alpha = *o.Alpha
	}
	if o.MinEntropy != nil {
		p.MinEntropy = *o.MinEntropy
	}
	if o.FDREnabled != nil {
		p.FDREnabled = *o.FDREnabled
	}
	return p
}

// AnalyzeResponse wraps the report document.
type AnalyzeResponse struct {
	RequestID string          `json:"request_id,omitempty"`
	Report    report.Document `json:"report"`
}

// AnalysisService provides the business-logic layer: it turns a request into
// a bit sequence, runs the analyzer, the supporting heuristics and the
// advisor, and builds the report document.
type AnalysisService struct {
	analyzer *randomness.Analyzer
	defaults randomness.Params
	maxBits  int
	logger   zerolog.Logger
}

// NewService creates an AnalysisService. maxBits caps the length of every
// analysed sequence.
func NewService(defaults randomness.Params, maxBits int, logger zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		analyzer: randomness.NewAnalyzer(randomness.WithLogger(logger)),
		defaults: defaults,
		maxBits:  maxBits,
		logger:   logger,
	}
}

// Defaults returns the parameters used when a request carries no overrides.
func (s *AnalysisService) Defaults() randomness.Params {
	return s.defaults
}

// MaxBits returns the configured bit limit.
func (s *AnalysisService) MaxBits() int {
	return s.maxBits
}

// Analyze validates req, resolves its bits and returns the full report.
// Errors wrapping randomness.ErrInvalidInput are caused by the request.
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}

	params := req.Params.Apply(s.defaults)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	seq, meta, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis, err := s.analyzer.Analyze(seq, params)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	supporting, err := heuristics.Compute(seq)
	if err != nil {
		return nil, fmt.Errorf("supporting metrics failed: %w", err)
	}

	advice := advisor.Advise(analysis, &supporting)
	doc := report.Build(meta, analysis, &supporting, advice)
	recordOutcome(analysis)

	requestID := middleware.GetRequestID(ctx)
	s.logger.Info().
		Str("request_id", requestID).
		Str("source", doc.Source).
		Int("bits", doc.Bits).
		Bool("overall_pass", doc.Results.Decisions.OverallPass).
		Dur("duration", time.Since(start)).
		Msg("analysis completed")

	return &AnalyzeResponse{RequestID: requestID, Report: doc}, nil
}

func (s *AnalysisService) resolve(req *AnalyzeRequest) (randomness.Sequence, report.Meta, error) {
	meta := report.Meta{Version: Version}

	inputs := 0
	for _, set := range []bool{len(req.Data) > 0, req.Hex != "", req.Text != "", req.Source != ""} {
		if set {
			inputs++
		}
	}
	switch {
	case inputs == 0:
		return randomness.Sequence{}, meta, fmt.Errorf("%w: one of data, hex, text or source is required", ErrInvalidRequest)
	case inputs > 1:
		return randomness.Sequence{}, meta, fmt.Errorf("%w: data, hex, text and source are mutually exclusive", ErrInvalidRequest)
	case req.Bits < 0:
		return randomness.Sequence{}, meta, fmt.Errorf("%w: bits must not be negative, got %d", ErrInvalidRequest, req.Bits)
	case req.Bits > s.maxBits:
		return randomness.Sequence{}, meta, fmt.Errorf("%w: %d bits requested, limit is %d", ErrTooLarge, req.Bits, s.maxBits)
	}

	order, err := randomness.ParseBitOrder(req.BitOrder)
	if err != nil {
		return randomness.Sequence{}, meta, err
	}

	var seq randomness.Sequence
	switch {
	case req.Source != "":
		return s.generate(req, meta)
	case len(req.Data) > 0:
		if req.Bits == 0 && len(req.Data) > s.maxBits/8 {
			return randomness.Sequence{}, meta, fmt.Errorf("%w: %d bytes supplied, limit is %d bits", ErrTooLarge, len(req.Data), s.maxBits)
		}
		meta.Source, meta.BitOrder = "bytes", order.String()
		seq, err = randomness.FromBytes(req.Data, order)
	case req.Hex != "":
		meta.Source, meta.BitOrder = "hex", order.String()
		seq, err = randomness.FromHex(req.Hex, order)
	default:
		meta.Source = "text"
		seq, err = randomness.ParseText(req.Text)
	}
	if err != nil {
		return randomness.Sequence{}, meta, err
	}
	if req.Label != "" {
		meta.Source = req.Label
	}

	if req.Bits > 0 {
		if req.Bits > seq.Len() {
			return randomness.Sequence{}, meta, fmt.Errorf("%w: %d bits requested but input holds %d", ErrInvalidRequest, req.Bits, seq.Len())
		}
		if seq, err = seq.Prefix(req.Bits); err != nil {
			return randomness.Sequence{}, meta, err
		}
	}
	if seq.Len() > s.maxBits {
		return randomness.Sequence{}, meta, fmt.Errorf("%w: input holds %d bits, limit is %d", ErrTooLarge, seq.Len(), s.maxBits)
	}
	return seq, meta, nil
}

func (s *AnalysisService) generate(req *AnalyzeRequest, meta report.Meta) (randomness.Sequence, report.Meta, error) {
	seed := uint64(source.DefaultSeed)
	if req.Seed != nil {
		seed = *req.Seed
	}

	src, err := source.New(req.Source, seed)
	if err != nil {
		if errors.Is(err, source.ErrUnknownSource) {
			return randomness.Sequence{}, meta, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return randomness.Sequence{}, meta, err
	}

	n := req.Bits
	if n == 0 {
		n = min(randomness.RecommendedBits, s.maxBits)
	}

	seq, err := source.Bits(src, n)
	if err != nil {
		return randomness.Sequence{}, meta, fmt.Errorf("generate %s: %w", src.Name(), err)
	}

	meta.Source = src.Name()
	meta.BitOrder = randomness.LSBFirst.String()
	if src.Deterministic() {
		meta.Seed = &seed
	}
	return seq, meta, nil
}

func recordOutcome(r *randomness.Report) {
	for _, p := range r.Raw {
		metrics.RecordPValue(p.Name, p.Value)
	}
	for _, d := range r.Decision.Tests {
		metrics.RecordVerdict(d.Name, d.Pass)
	}
	if !r.RCT.Passed {
		metrics.RecordHealthFailure(randomness.HealthRepetitionCount)
	}
	if !r.APT.Passed {
		metrics.RecordHealthFailure(randomness.HealthAdaptiveProp)
	}
}
