// Command agentd runs the research agent: one-shot queries from the command
// line, a query history dump, an LLM health probe, or the long-running daily
// briefing daemon with a Prometheus metrics endpoint.
//
// Usage:
//
//	agentd -query "what's happening with bitcoin"
//	agentd -source weather -query "London"
//	agentd -history 10
//	agentd -health
//	agentd -daemon
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/briefops/research-agent/collector"
	"github.com/briefops/research-agent/config"
	"github.com/briefops/research-agent/emit"
	"github.com/briefops/research-agent/llm"
	"github.com/briefops/research-agent/pipeline"
	"github.com/briefops/research-agent/schedule"
	"github.com/briefops/research-agent/store"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		query       = flag.String("query", "", "run one query and print the response")
		source      = flag.String("source", "", "preset source for -query (skips LLM routing)")
		userID      = flag.String("user", "cli", "user id recorded in the query log")
		historyN    = flag.Int("history", 0, "print the last N logged queries and exit")
		health      = flag.Bool("health", false, "check LLM reachability and exit")
		daemon      = flag.Bool("daemon", false, "run the daily briefing scheduler")
		metricsAddr = flag.String("metrics-addr", ":9091", "listen address for /metrics in daemon mode")
		jsonLogs    = flag.Bool("json", false, "emit events as JSONL instead of text")
	)
	flag.Parse()

	if err := run(*configPath, *query, *source, *userID, *historyN, *health, *daemon, *metricsAddr, *jsonLogs); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, query, source, userID string, historyN int, health, daemon bool, metricsAddr string, jsonLogs bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	emitter := emit.NewLogEmitter(os.Stderr, jsonLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if historyN > 0 {
		return printHistory(ctx, st, historyN)
	}

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	defer client.Close()

	if health {
		if !client.HealthCheck(ctx) {
			return fmt.Errorf("llm provider %s (%s) is unreachable", cfg.LLM.Provider, client.Model())
		}
		fmt.Printf("llm provider %s (%s) is healthy\n", cfg.LLM.Provider, client.Model())
		return nil
	}

	registry := collector.NewRegistry(collector.RegistryConfig{
		GitHubToken:  cfg.Keys.GitHubToken,
		SerperAPIKey: cfg.Keys.SerperAPIKey,
		RapidAPIKey:  cfg.Keys.RapidAPIKey,
	}, emitter)

	registerer := prometheus.DefaultRegisterer
	opts := []pipeline.Option{
		pipeline.WithQueryLog(st),
		pipeline.WithEmitter(emitter),
		pipeline.WithMetrics(pipeline.NewMetrics(registerer)),
	}
	if cfg.LLM.Provider == "ollama" {
		opts = append(opts, pipeline.WithRoutingModel(cfg.LLM.OllamaRoutingModel))
	}
	p := pipeline.New(client, registry, opts...)

	if query != "" {
		return runOnce(ctx, p, query, source, userID)
	}
	if daemon {
		return runDaemon(ctx, cfg, p, st, emitter, metricsAddr)
	}

	flag.Usage()
	return fmt.Errorf("nothing to do: pass -query, -history, -health, or -daemon")
}

func runOnce(ctx context.Context, p *pipeline.Pipeline, query, source, userID string) error {
	req := pipeline.Request{UserMessage: query, UserID: userID}
	if source != "" {
		req.Source = source
		req.Query = query
	}

	state, err := p.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}
	fmt.Println(state.Response)
	return nil
}

func printHistory(ctx context.Context, st store.Store, n int) error {
	records, err := st.History(ctx, "", n)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no queries logged yet")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  [%s] user=%s items=%d\n    %s\n",
			rec.CreatedAt.Format(time.RFC3339), rec.Source, rec.UserID, rec.ItemCount, rec.Query)
	}
	return nil
}

func runDaemon(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, st store.Store, emitter emit.Emitter, metricsAddr string) error {
	sched := schedule.New(schedule.Config{
		Hour:    cfg.Daily.Hour,
		Minute:  cfg.Daily.Minute,
		Sources: cfg.DailySources(),
		Queries: cfg.DailyQueries(),
		GroupID: cfg.Daily.GroupID,
	}, p, st, emitter, &consoleSink{})

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				emitter.Emit(emit.Event{Stage: "daemon", Msg: "metrics_server_failed",
					Meta: map[string]any{"addr": metricsAddr, "error": err.Error()}})
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err := sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consoleSink prints briefings to stdout. It stands in for a messaging
// transport; a Telegram or WhatsApp bridge would implement schedule.Sink the
// same way.
type consoleSink struct{}

func (consoleSink) SendGroup(ctx context.Context, groupID, message string) error {
	fmt.Printf("=== briefing for group %s ===\n%s\n", groupID, message)
	return nil
}

func (consoleSink) Send(ctx context.Context, chatID, message string) error {
	fmt.Printf("=== briefing for %s ===\n%s\n", chatID, message)
	return nil
}
