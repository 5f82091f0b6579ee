package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/macrobrief/macrobrief/internal/audit"
	"github.com/macrobrief/macrobrief/internal/calendar"
	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/fetch"
	"github.com/macrobrief/macrobrief/internal/gates"
	httpiface "github.com/macrobrief/macrobrief/internal/interfaces/http"
	"github.com/macrobrief/macrobrief/internal/livedata"
	"github.com/macrobrief/macrobrief/internal/llm"
	"github.com/macrobrief/macrobrief/internal/mailer"
	"github.com/macrobrief/macrobrief/internal/pipeline"
	"github.com/macrobrief/macrobrief/internal/scoring"
	"github.com/macrobrief/macrobrief/internal/scrub"
	"github.com/macrobrief/macrobrief/internal/signals"
	"github.com/macrobrief/macrobrief/internal/store"
)

// buildBuilder assembles the ground-truth builder from the config dir.
func buildBuilder() (*gates.Builder, *scrub.Config, error) {
	scoringCfg, err := scoring.LoadConfig(configPath("scoring.yaml"))
	if err != nil {
		return nil, nil, err
	}
	signalsCfg, err := signals.LoadConfig(configPath("signals.yaml"))
	if err != nil {
		return nil, nil, err
	}
	calendarCfg, err := calendar.LoadConfig(configPath("calendar.yaml"))
	if err != nil {
		return nil, nil, err
	}
	whitelist, err := gates.LoadWhitelist(configPath("whitelist.yaml"))
	if err != nil {
		return nil, nil, err
	}
	scrubCfg, err := scrub.LoadConfig(configPath("redaction.yaml"))
	if err != nil {
		return nil, nil, err
	}

	var bannedTerms []string
	for _, r := range scrubCfg.Rules {
		if r.Scope == scrub.ScopeGlobal {
			bannedTerms = append(bannedTerms, r.Phrases...)
		}
	}

	builder := gates.NewBuilder(
		scoring.NewEngine(scoringCfg),
		signals.NewClassifier(signalsCfg),
		calendar.New(calendarCfg),
		whitelist,
		bannedTerms,
	)
	return builder, scrubCfg, nil
}

// loadDocument parses and validates the extracted input document.
func loadDocument(path string) (*extract.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input document: %w", err)
	}
	return extract.ParseDocument(data)
}

func runCmd() *cobra.Command {
	var (
		inputPath   string
		artifactDir string
		storeDSN    string
		providers   string
		withFetch   bool
		withLive    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the full daily pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			runDate, err := resolveDate()
			if err != nil {
				return err
			}
			doc, err := loadDocument(inputPath)
			if err != nil {
				return err
			}

			if withFetch {
				fetchCfg, err := fetch.LoadConfig(configPath("sources.yaml"))
				if err != nil {
					return err
				}
				_, notes := fetch.NewClient(fetchCfg, log.Logger).DownloadAll(cmd.Context())
				doc.Quality = append(doc.Quality, notes...)
			}

			if withLive && doc.Live == nil {
				var cache *redis.Client
				if addr := os.Getenv("MACROBRIEF_REDIS_ADDR"); addr != "" {
					cache = redis.NewClient(&redis.Options{Addr: addr})
				}
				svc := livedata.NewService(livedata.NewStooqProvider(), cache, livedata.DefaultConfig(), log.Logger)
				doc.Live = svc.Snapshot(cmd.Context(), runDate)
			}

			builder, scrubCfg, err := buildBuilder()
			if err != nil {
				return err
			}
			scrubber, err := scrub.New(scrubCfg)
			if err != nil {
				return err
			}

			llmCfg, err := llm.LoadConfig(configPath("llm.yaml"))
			if err != nil {
				return err
			}
			if providers != "" {
				llmCfg.Selection = llm.Selection(providers)
			}
			mailCfg, err := mailer.LoadConfig(configPath("mailer.yaml"))
			if err != nil {
				return err
			}

			var repo store.RunRepository
			if storeDSN != "" {
				pg, err := store.NewPostgresRunRepo(storeDSN)
				if err != nil {
					return err
				}
				defer pg.Close()
				repo = pg
			}

			runner := &pipeline.Runner{
				Builder:     builder,
				Scrubber:    scrubber,
				Validator:   audit.New(),
				Clients:     llm.Select(llmCfg, log.Logger),
				Repo:        repo,
				Mailer:      mailer.New(mailCfg, log.Logger),
				Metrics:     pipeline.NewMetrics(prometheus.DefaultRegisterer),
				Log:         log.Logger,
				ArtifactDir: artifactDir,
			}

			result, err := runner.Run(cmd.Context(), runDate, doc)
			if err != nil {
				return err
			}
			fmt.Printf("run %s complete: %d narrative(s), %d finding(s)\n",
				result.RunID[:8], len(result.Narratives), result.FindingCount())
			if result.HTMLPath != "" {
				fmt.Printf("brief: %s\n", result.HTMLPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Extracted document JSON (required)")
	cmd.Flags().StringVar(&artifactDir, "artifacts", "artifacts", "Artifact output directory")
	cmd.Flags().StringVar(&storeDSN, "store-dsn", os.Getenv("MACROBRIEF_DB_DSN"), "Postgres DSN for run persistence")
	cmd.Flags().StringVar(&providers, "providers", "", "Provider selection: ALL, OPENROUTER, GEMINI, NONE")
	cmd.Flags().BoolVar(&withFetch, "fetch", false, "Download source PDFs before the run")
	cmd.Flags().BoolVar(&withLive, "live", false, "Resolve the live market snapshot")
	cmd.MarkFlagRequired("input")
	return cmd
}

func groundTruthCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "groundtruth",
		Short: "Compute and print the ground-truth bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			runDate, err := resolveDate()
			if err != nil {
				return err
			}
			doc, err := loadDocument(inputPath)
			if err != nil {
				return err
			}
			builder, _, err := buildBuilder()
			if err != nil {
				return err
			}
			bundle, err := builder.Build(runDate, doc)
			if err != nil {
				return err
			}
			rendered, err := bundle.Render()
			if err != nil {
				return err
			}
			os.Stdout.Write(rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Extracted document JSON (required)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func scrubCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Scrub a narrative file (all sections treated neutral)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("failed to read narrative: %w", err)
			}
			scrubCfg, err := scrub.LoadConfig(configPath("redaction.yaml"))
			if err != nil {
				return err
			}
			scrubber, err := scrub.New(scrubCfg)
			if err != nil {
				return err
			}
			res := scrubber.Scrub(string(text), nil)
			for _, rep := range res.Replacements {
				log.Info().Str("rule", rep.Rule).Str("original", rep.Original).Msg("replaced")
			}
			fmt.Print(res.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Narrative text file (required)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func auditCmd() *cobra.Command {
	var narrativePath, bundlePath string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit a narrative against a rendered ground-truth bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(narrativePath)
			if err != nil {
				return fmt.Errorf("failed to read narrative: %w", err)
			}
			raw, err := os.ReadFile(bundlePath)
			if err != nil {
				return fmt.Errorf("failed to read bundle: %w", err)
			}
			var bundle gates.Bundle
			if err := json.Unmarshal(raw, &bundle); err != nil {
				return fmt.Errorf("failed to parse bundle: %w", err)
			}

			revised, findings := audit.New().Audit(string(text), &bundle, nil)
			for _, f := range findings {
				log.Warn().Str("kind", string(f.Kind)).Str("section", f.Section).Str("metric", f.Metric).Msg(f.Excerpt)
			}
			fmt.Print(revised)
			if len(findings) > 0 {
				fmt.Fprintf(os.Stderr, "\n%d finding(s)\n", len(findings))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&narrativePath, "narrative", "", "Narrative text file (required)")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "Ground-truth bundle JSON (required)")
	cmd.MarkFlagRequired("narrative")
	cmd.MarkFlagRequired("bundle")
	return cmd
}

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the event context for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			runDate, err := resolveDate()
			if err != nil {
				return err
			}
			calendarCfg, err := calendar.LoadConfig(configPath("calendar.yaml"))
			if err != nil {
				return err
			}
			ctx := calendar.New(calendarCfg).Evaluate(runDate)
			out, err := json.MarshalIndent(ctx, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		addrPort int
		storeDSN string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only monitor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var repo store.RunRepository
			if storeDSN != "" {
				pg, err := store.NewPostgresRunRepo(storeDSN)
				if err != nil {
					return err
				}
				defer pg.Close()
				repo = pg
			}

			registry := prometheus.NewRegistry()
			pipeline.NewMetrics(registry)

			cfg := httpiface.DefaultServerConfig()
			if addrPort != 0 {
				cfg.Port = addrPort
			}
			srv := httpiface.NewServer(cfg, repo, registry, log.Logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&addrPort, "port", 0, "Listen port (default 8080)")
	cmd.Flags().StringVar(&storeDSN, "store-dsn", os.Getenv("MACROBRIEF_DB_DSN"), "Postgres DSN for run history")
	return cmd
}
