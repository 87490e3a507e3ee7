package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/AmmannChristian/randqa/internal/metrics"
	"github.com/AmmannChristian/randqa/internal/middleware"
	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/report"
)

const transportHTTP = "http"

// AnalyzePath is the route of the HTTP analysis endpoint.
const AnalyzePath = "/api/v1/analyze"

// HTTPHandler exposes AnalysisService over HTTP.
//
// POST /api/v1/analyze accepts either an AnalyzeRequest as JSON or, with
// Content-Type application/octet-stream, the raw bytes to analyse. For raw
// uploads the bits, bit_order and label query parameters fill the matching
// request fields. format=markdown switches the response to a Markdown report.
type HTTPHandler struct {
	svc           *AnalysisService
	maxUploadSize int64
	logger        zerolog.Logger
}

// NewHTTPHandler creates an HTTPHandler. Bodies larger than maxUploadSize
// are rejected with 413.
func NewHTTPHandler(svc *AnalysisService, maxUploadSize int64, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:           svc,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Register mounts the API routes on r.
func (h *HTTPHandler) Register(r chi.Router) {
	r.Post(AnalyzePath, h.analyze)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *HTTPHandler) analyze(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	metrics.RecordRequest(transportHTTP)
	defer func() {
		metrics.RecordDuration(transportHTTP, time.Since(startTime).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	req, err := decodeRequest(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordError(transportHTTP, "too_large")
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "request body exceeds "+strconv.FormatInt(h.maxUploadSize, 10)+" bytes")
			return
		}
		metrics.RecordError(transportHTTP, "invalid_input")
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		metrics.RecordError(transportHTTP, errorType(err))
		h.writeError(w, r, statusFor(err), err.Error())
		return
	}
	metrics.RecordSequenceBits(transportHTTP, resp.Report.Bits)

	if strings.EqualFold(r.URL.Query().Get("format"), "markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report.Markdown(resp.Report))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeRequest(r *http.Request) (*AnalyzeRequest, error) {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "application/octet-stream") {
		return decodeRaw(r)
	}

	var req AnalyzeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("invalid JSON body: " + err.Error())
	}
	return &req, nil
}

func decodeRaw(r *http.Request) (*AnalyzeRequest, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	req := &AnalyzeRequest{
		Data:     data,
		BitOrder: q.Get("bit_order"),
		Label:    q.Get("label"),
	}
	if v := q.Get("bits"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("invalid bits parameter: " + v)
		}
		req.Bits = n
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, randomness.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	requestID := middleware.GetRequestID(r.Context())
	h.logger.Warn().
		Str("request_id", requestID).
		Int("status", code).
		Str("error", msg).
		Msg("analysis request rejected")
	writeJSON(w, code, errorResponse{Error: msg, RequestID: requestID})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
