package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"debatecoach/agent/internal/api"
	"debatecoach/agent/internal/capture"
	"debatecoach/agent/internal/config"
	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/content/rpc"
	"debatecoach/agent/internal/health"
	"debatecoach/agent/internal/loop"
	"debatecoach/agent/internal/orchestrator"
	"debatecoach/agent/internal/store"
	"debatecoach/agent/internal/stt"
	"debatecoach/agent/internal/telemetry"
	"debatecoach/agent/internal/tts"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load if present")
	flag.Parse()
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load(*envFile)

	cfg := config.Load()

	logger, closeLog, err := telemetry.InitLogger(cfg.Server.LogFile, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, "debatecoach-server", cfg.Server.TraceFile)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer shutdownTracing()

	gen, pinger, closeGen := buildGenerator(cfg)
	defer closeGen()

	st := store.New()
	reg := capture.NewRegistry()

	h := api.NewHandlers(cfg, st, api.Deps{
		Generator: gen,
		Sink:      orchestrator.MultiSink{st, reg},
		Synth:     tts.New(cfg.Eleven.APIKey, cfg.Eleven.VoiceID),
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		status := health.CheckAll(r.Context(), cfg, pinger, health.DefaultEndpoints)
		w.Header().Set("Content-Type", "application/json")
		if !status.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	// Capture socket: fragments and audio in, session events out.
	wss := capture.NewServer(cfg, st, reg)
	wss.Log = logger
	if cfg.Deepgram.APIKey != "" {
		wss.STT = stt.NewBridge(stt.DGConfig{
			Model:    cfg.Deepgram.Model,
			Language: cfg.Deepgram.Language,
			BaseURL:  cfg.Deepgram.WSURL,
		}, cfg.Deepgram.APIKey, logger)
	}
	disp := loop.New(reg, st, logger)
	wss.OnMessage = disp.OnMessage
	mux.HandleFunc("/ws/capture", wss.HandleCaptureWS)

	// One pulse per second drives every session's clocks.
	go loop.NewPulser(st, logger).Run(ctx)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Printf("shutdown signal received; stopping server...")
		for _, id := range st.ListSessionIDs() {
			st.DeleteSession(id)
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Printf("server starting on %s (content=%s)", addr, cfg.Content.Mode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

// buildGenerator picks the content backend. Structure-notes replies are
// cached either way.
func buildGenerator(cfg config.Config) (content.Generator, health.Pinger, func()) {
	switch cfg.Content.Mode {
	case "grpc":
		c := rpc.NewClient(cfg.Content.Addr)
		return content.NewCached(c, cfg.Content.CacheTTL), c, func() { _ = c.Close() }
	case "offline":
		return content.Offline{}, nil, func() {}
	default:
		llm := content.NewLLM(content.LLMConfig{
			Endpoint:   cfg.LLM.Endpoint,
			APIKey:     cfg.LLM.APIKey,
			Deployment: cfg.LLM.Deployment,
			APIVersion: cfg.LLM.APIVersion,
		})
		return content.NewCached(llm, cfg.Content.CacheTTL), nil, func() {}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes the websocket upgrade through to the real connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start))
	})
}
