package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examtrainer/internal/exam"
	"github.com/pavelanni/examtrainer/internal/handler"
	appI18n "github.com/pavelanni/examtrainer/internal/i18n"
	"github.com/pavelanni/examtrainer/internal/llm"
	"github.com/pavelanni/examtrainer/internal/llm/prompts"
	"github.com/pavelanni/examtrainer/internal/model"
	"github.com/pavelanni/examtrainer/internal/scoring"
	"github.com/pavelanni/examtrainer/internal/source"
	"github.com/pavelanni/examtrainer/internal/store"
	"github.com/pavelanni/examtrainer/internal/trainer"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examtrainer",
		Short: "Timed exam trainer with checkpoint scoring",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examtrainer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the exam trainer API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examtrainer.db", "SQLite database path")
	f.String("source-url", "http://localhost:5000", "Question source base URL")
	f.String("scorer", "http", "Answer scorer (http, llm)")
	f.String("scorer-url", "http://localhost:5000", "Scoring service base URL")
	f.Float64("scorer-rps", 5, "Max scoring requests per second (0 = unlimited)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.Standard), "Scoring prompt variant (strict, standard, lenient)")
	f.Duration("exam-duration", exam.DefaultDurationSeconds*time.Second, "Exam length")
	f.Duration("request-timeout", 30*time.Second, "Timeout for question source and scorer requests")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export finished exam results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examtrainer.db", "SQLite database path")
	f.String("subject", "", "Only export results for this subject")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMTRAINER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examtrainer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examtrainer")
	v.AddConfigPath("/etc/examtrainer")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newScorer(ctx context.Context, v *viper.Viper) (scoring.Scorer, error) {
	switch kind := strings.ToLower(v.GetString("scorer")); kind {
	case "llm":
		variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", variant)
			variant = string(prompts.Standard)
		}
		c, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), variant)
		if err != nil {
			return nil, fmt.Errorf("create LLM client: %w", err)
		}
		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"), "variant", variant)
		return c, nil
	case "http", "":
		rps := v.GetFloat64("scorer-rps")
		return scoring.NewHTTPScorer(v.GetString("scorer-url"),
			scoring.WithHTTPClient(&http.Client{Timeout: v.GetDuration("request-timeout")}),
			scoring.WithRateLimit(rps, max(int(rps), 1)),
		), nil
	default:
		return nil, fmt.Errorf("unknown scorer %q (want http or llm)", kind)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	scorer, err := newScorer(ctx, v)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	duration := v.GetDuration("exam-duration")
	t := trainer.New(
		source.New(v.GetString("source-url"), v.GetDuration("request-timeout")),
		scorer,
		db,
		trainer.WithDuration(int(duration/time.Second)),
		trainer.WithMetrics(trainer.NewMetrics(reg)),
	)
	if err := t.Resume(); err != nil {
		return fmt.Errorf("resume exam: %w", err)
	}
	httpMetrics := handler.NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httpMetrics.Middleware)
	r.Use(appI18n.Middleware(lang))
	handler.New(t).Routes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"source_url", v.GetString("source-url"),
		"scorer", v.GetString("scorer"),
		"exam_duration", duration,
		"lang", lang,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	subject := v.GetString("subject")
	results, err := db.ListResults(subject)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.ExamResult{}
	}

	export := model.ResultsExport{
		ExportedAt: time.Now().UTC(),
		Subject:    subject,
		Count:      len(results),
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", len(results), "subject", subject)
	return nil
}
