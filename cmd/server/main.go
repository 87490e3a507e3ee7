package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmmannChristian/go-authx/httpserver"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/randqa/internal/config"
	"github.com/AmmannChristian/randqa/internal/middleware"
	"github.com/AmmannChristian/randqa/internal/service"
)

type server struct {
	config *config.Config
	router chi.Router
	svc    *service.AnalysisService
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)

	log.Info().
		Str("version", service.Version).
		Int("http_port", cfg.ServerPort).
		Int("grpc_port", cfg.GRPCPort).
		Bool("grpc_enabled", cfg.GRPCEnabled).
		Bool("tls_enabled", cfg.TLSEnabled).
		Int("max_bits", cfg.MaxBits).
		Int64("max_upload_bytes", cfg.MaxUploadSize).
		Msg("starting randomness assessment server")

	srv := &server{
		config: cfg,
		router: chi.NewRouter(),
		svc:    service.NewService(cfg.AnalysisParams(), cfg.MaxBits, log.Logger),
	}

	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		if tlsConfig, err = buildTLSConfig(cfg); err != nil {
			return err
		}
	}

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 2)

	// Optional gRPC server
	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GRPCEnabled {
		grpcListener, err = net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to create gRPC listener: %w", err)
		}

		opts := []grpc.ServerOption{
			grpc.ChainUnaryInterceptor(
				middleware.UnaryRequestIDInterceptor(),
				loggingInterceptor,
			),
			grpc.MaxRecvMsgSize(int(cfg.MaxUploadSize)),
		}
		if tlsConfig != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
		}
		grpcServer = grpc.NewServer(opts...)

		service.RegisterRandomnessAssessmentServer(grpcServer, service.NewGRPCServer(srv.svc))
		reflection.Register(grpcServer)

		go func() {
			log.Info().Str("addr", grpcListener.Addr().String()).Bool("tls", tlsConfig != nil).Msg("gRPC server listening")
			if err := grpcServer.Serve(grpcListener); err != nil && err != grpc.ErrServerStopped {
				serverErrors <- err
			}
		}()
	}

	// Channel to listen for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// HTTP API, health and metrics
	srv.registerRoutes()
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      srv.router,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if tlsConfig != nil {
		httpServer.TLSConfig = tlsConfig
	}

	go func() {
		var err error
		if tlsConfig != nil {
			log.Info().Str("addr", httpServer.Addr).Msg("HTTPS server listening")
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// Block until we receive a signal or error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpServer.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		if grpcServer != nil {
			grpcServer.GracefulStop()
			if grpcListener != nil {
				_ = grpcListener.Close()
			}
		}

		log.Info().Msg("server stopped gracefully")
	}

	return nil
}

// buildTLSConfig loads the server certificate, and the client CA when set,
// through go-authx. The result is shared by the HTTP and gRPC listeners.
func buildTLSConfig(cfg *config.Config) (*tls.Config, error) {
	clientAuth, err := cfg.TLSClientAuthType()
	if err != nil {
		return nil, err
	}
	minVersion, err := cfg.TLSMinVersionValue()
	if err != nil {
		return nil, err
	}

	probe := &http.Server{}
	if err := httpserver.ConfigureServer(probe, &httpserver.TLSConfig{
		CertFile:   cfg.TLSCertFile,
		KeyFile:    cfg.TLSKeyFile,
		CAFile:     cfg.TLSCAFile,
		ClientAuth: clientAuth,
	}); err != nil {
		return nil, fmt.Errorf("configure TLS: %w", err)
	}
	if probe.TLSConfig == nil {
		return nil, errors.New("configure TLS: no TLS configuration produced")
	}

	tlsConfig := probe.TLSConfig.Clone()
	tlsConfig.MinVersion = minVersion
	log.Info().Str("cert", cfg.TLSCertFile).Str("ca", cfg.TLSCAFile).Str("client_auth", cfg.TLSClientAuth).Msg("TLS configured")
	return tlsConfig, nil
}

func (s *server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(httpLogger)
	s.router.Use(chimw.Recoverer)

	// Health check
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		health := map[string]interface{}{
			"status":   "healthy",
			"version":  service.Version,
			"max_bits": s.svc.MaxBits(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	// Metrics endpoint
	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.Group(func(r chi.Router) {
		if s.config.Timeout > 0 {
			r.Use(chimw.Timeout(s.config.Timeout))
		}
		service.NewHTTPHandler(s.svc, s.config.MaxUploadSize, log.Logger).Register(r)
	})
}

// setupLogging configures zerolog for structured output.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loggingInterceptor logs gRPC requests with status code, timing and request ID.
func loggingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	event := log.Info()
	msg := "gRPC request completed"
	if err != nil {
		event = log.Error().Err(err)
		msg = "gRPC request failed"
	}
	event.
		Str("request_id", middleware.GetRequestID(ctx)).
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("duration", time.Since(start)).
		Msg(msg)

	return resp, err
}

// httpLogger logs HTTP requests with status, timing and request ID.
func httpLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request completed")
	})
}
