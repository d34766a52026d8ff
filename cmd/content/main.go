package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"debatecoach/agent/internal/config"
	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/content/rpc"
	"debatecoach/agent/internal/telemetry"
)

var (
	addr        = flag.String("addr", ":9092", "content service listen addr")
	metricsAddr = flag.String("metrics-addr", ":8083", "probes/metrics listen addr")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()

	_, closeLog, err := telemetry.InitLogger(cfg.Server.LogFile, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdownTracing, err := telemetry.InitTracing(ctx, "debatecoach-content", cfg.Server.TraceFile)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer shutdownTracing()

	gen := content.NewCached(content.NewLLM(content.LLMConfig{
		Endpoint:   cfg.LLM.Endpoint,
		APIKey:     cfg.LLM.APIKey,
		Deployment: cfg.LLM.Deployment,
		APIVersion: cfg.LLM.APIVersion,
	}), cfg.Content.CacheTTL)
	s, hs := rpc.NewGRPCServer(gen)

	// metrics/health
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok\n")) })
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if cfg.LLM.Endpoint == "" || cfg.LLM.APIKey == "" {
				http.Error(w, "llm not configured\n", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok\n"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("content probes/metrics on %s", *metricsAddr)
		_ = http.ListenAndServe(*metricsAddr, mux)
	}()

	go func() {
		<-ctx.Done()
		log.Printf("shutdown signal received; draining content service...")
		hs.Shutdown()
		s.GracefulStop()
	}()

	l, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("content listening on %s", *addr)
	if err := s.Serve(l); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
