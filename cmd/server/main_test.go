package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AmmannChristian/randqa/internal/config"
	"github.com/AmmannChristian/randqa/internal/middleware"
	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/service"
)

func TestSetupLogging(t *testing.T) {
	orig := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(orig)

	cases := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			setupLogging(tc.level)
			assert.Equal(t, tc.expected, zerolog.GlobalLevel())
		})
	}
}

func newTestServer(cfg *config.Config) *server {
	srv := &server{
		config: cfg,
		router: chi.NewRouter(),
		svc:    service.NewService(randomness.DefaultParams(), 1_000_000, zerolog.Nop()),
	}
	srv.registerRoutes()
	return srv
}

func TestRegisterRoutesHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&config.Config{
		ServerHost:     "127.0.0.1",
		ServerPort:     0,
		MetricsEnabled: true,
		MaxUploadSize:  1 << 20,
		Timeout:        time.Minute,
	})

	// Health GET
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), service.Version)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	// Health wrong method
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	// Metrics endpoint should exist
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRegisterRoutesWithoutMetrics(t *testing.T) {
	srv := newTestServer(&config.Config{MaxUploadSize: 1 << 20})

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterRoutesAnalyze(t *testing.T) {
	srv := newTestServer(&config.Config{MaxUploadSize: 1 << 20, Timeout: time.Minute})

	body := strings.NewReader(`{"source":"lcg","seed":42,"bits":100000}`)
	req := httptest.NewRequest(http.MethodPost, service.AnalyzePath, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp service.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Report.Results.Decisions.OverallPass)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), resp.RequestID)
}

func TestHTTPLoggerRecordsStatus(t *testing.T) {
	h := httpLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestBuildTLSConfigMissingFiles(t *testing.T) {
	_, err := buildTLSConfig(&config.Config{
		TLSEnabled:    true,
		TLSCertFile:   "/nonexistent/cert.pem",
		TLSKeyFile:    "/nonexistent/key.pem",
		TLSClientAuth: "none",
		TLSMinVersion: "1.3",
	})
	require.Error(t, err)

	_, err = buildTLSConfig(&config.Config{TLSClientAuth: "sometimes"})
	require.Error(t, err)
}

func TestLoggingInterceptor(t *testing.T) {
	setupLogging("debug")

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	// Success case
	resp, err := loggingInterceptor(ctx, "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(1 * time.Millisecond)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	// Error case
	_, err = loggingInterceptor(ctx, "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, assert.AnError
	})
	assert.Error(t, err)
}

func TestRunFailsOnBadConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "negative port", env: map[string]string{"SERVER_PORT": "-1"}},
		{name: "tls without certificate", env: map[string]string{"TLS_ENABLED": "true"}},
		{name: "zero max bits", env: map[string]string{"MAX_BITS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := run()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to load configuration")
		})
	}
}

// freePort reserves an ephemeral TCP port and releases it for run to bind.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on tcp :0: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startRun launches run with the given environment and waits for the
// listeners to come up.
func startRun(t *testing.T, env map[string]string) <-chan error {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- run()
	}()
	time.Sleep(200 * time.Millisecond)
	return errCh
}

// stopRun sends SIGTERM to the test process and expects a clean shutdown.
func stopRun(t *testing.T, errCh <-chan error) {
	t.Helper()
	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGTERM))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}

func TestRunServesHTTPUntilSignal(t *testing.T) {
	port := freePort(t)
	errCh := startRun(t, map[string]string{
		"SERVER_PORT":     strconv.Itoa(port),
		"METRICS_ENABLED": "true",
		"GRPC_ENABLED":    "false",
	})

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if assert.NoError(t, err) {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	stopRun(t, errCh)
}

func TestRunServesGRPC(t *testing.T) {
	grpcPort := freePort(t)
	errCh := startRun(t, map[string]string{
		"SERVER_PORT":     strconv.Itoa(freePort(t)),
		"GRPC_PORT":       strconv.Itoa(grpcPort),
		"GRPC_ENABLED":    "true",
		"METRICS_ENABLED": "false",
	})

	conn, err := grpc.NewClient(fmt.Sprintf("127.0.0.1:%d", grpcPort), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := service.NewClient(conn).Analyze(context.Background(), &service.AnalyzeRequest{
		Source: "xorshift",
		Bits:   10_000,
	})
	if assert.NoError(t, err) {
		assert.Equal(t, "xorshift", resp.Report.Source)
		assert.Equal(t, 10_000, resp.Report.Bits)
		assert.NotEmpty(t, resp.RequestID)
	}

	stopRun(t, errCh)
}
