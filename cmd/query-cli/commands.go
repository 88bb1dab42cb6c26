package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"query-orchestrator/internal/clients/genai"
	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine"
	"query-orchestrator/internal/engine/classifier"
	"query-orchestrator/internal/engine/extractor"
	"query-orchestrator/internal/engine/orchestrator"
	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/operations"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "query-cli",
		Short:         "Inspect and run the query engine locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML); built-in defaults when empty")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	cmd.AddCommand(classifyCmd(opts), planCmd(opts), askCmd(opts))
	return cmd
}

func classifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <query>",
		Short: "Print the analysis of a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			analysis, err := newClassifier(cfg, opts).Analyze(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}
}

func planCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <query>",
		Short: "Print the execution plan for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			analysis, err := newClassifier(cfg, opts).Analyze(strings.Join(args, " "))
			if err != nil {
				return err
			}
			plan, err := planner.New(planner.WithLogger(newLogger(opts))).Plan(analysis)
			if err != nil {
				return err
			}

			levels := make([][]string, 0)
			for _, level := range plan.Levels() {
				names := make([]string, len(level))
				for i, p := range level {
					names[i] = p.Name
				}
				levels = append(levels, names)
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"queryType": analysis.Type,
				"plan":      plan,
				"levels":    levels,
			})
		},
	}
}

func askCmd(opts *globalOptions) *cobra.Command {
	var (
		genaiURL  string
		format    string
		strategy  string
		maxTimeMs int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a query end to end",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if genaiURL != "" {
				cfg.APIs.GenAI.BaseURL = genaiURL
			}
			if cfg.APIs.GenAI.BaseURL == "" {
				return fmt.Errorf("no reasoning service configured: set apis.genai.base_url or --genai-url")
			}

			log := newLogger(opts)
			eng, err := engine.Build(cfg.Orchestrator, engine.Backends{
				Reasoning:  newReasoning(cfg, log),
				Operations: operations.NewFromSources(httpSources(cfg), log),
			}, log)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			resp, err := eng.Orchestrator.Handle(ctx, orchestrator.Request{
				Query:     strings.Join(args, " "),
				SessionID: sessionID,
				Preferences: orchestrator.Preferences{
					CacheStrategy:      strategy,
					ResponseFormat:     format,
					MaxExecutionTimeMs: maxTimeMs,
				},
			})
			if resp != nil {
				if printErr := printJSON(cmd.OutOrStdout(), resp); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&genaiURL, "genai-url", "", "Reasoning service base URL")
	cmd.Flags().StringVar(&format, "format", "summary", "Response format (summary, detailed)")
	cmd.Flags().StringVar(&strategy, "cache", "standard", "Cache strategy (standard, aggressive, minimal, none)")
	cmd.Flags().IntVar(&maxTimeMs, "max-time", 0, "Execution budget in milliseconds")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(opts *globalOptions) logger.Logger {
	return logger.NewStructured(opts.logLevel, "console")
}

func newClassifier(cfg *config.Config, opts *globalOptions) *classifier.Classifier {
	return classifier.New(extractor.New(),
		classifier.WithMaxQueryLength(cfg.Orchestrator.MaxQueryLength),
		classifier.WithLogger(newLogger(opts)),
	)
}

func newReasoning(cfg *config.Config, log logger.Logger) *genai.Client {
	return genai.NewClient(genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
	}, log)
}

// httpSources exposes only the HTTP data sources; the CLI never dials the
// search index or the database.
func httpSources(cfg *config.Config) operations.Sources {
	httpSource := func(api config.HTTPAPIConfig) operations.HTTPConfig {
		return operations.HTTPConfig{BaseURL: api.BaseURL, APIKey: api.APIKey, Timeout: config.GetDuration(api.Timeout)}
	}
	return operations.Sources{
		Weather:           httpSource(cfg.APIs.Weather),
		Events:            httpSource(cfg.APIs.Events),
		Geocode:           httpSource(cfg.APIs.Geocode),
		IPGeolocation:     httpSource(cfg.APIs.IPGeolocation),
		Photos:            httpSource(cfg.APIs.Photos),
		WebSearch:         httpSource(cfg.APIs.WebSearch.HTTPAPIConfig),
		WebSearchEngineID: cfg.APIs.WebSearch.EngineID,
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
