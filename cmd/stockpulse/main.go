package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockpulse/stockpulse/internal/analyze"
	"github.com/stockpulse/stockpulse/internal/classify"
	"github.com/stockpulse/stockpulse/internal/collect"
	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/cooldown"
	"github.com/stockpulse/stockpulse/internal/database"
	"github.com/stockpulse/stockpulse/internal/enrich"
	"github.com/stockpulse/stockpulse/internal/jobs"
	"github.com/stockpulse/stockpulse/internal/sentiment"
	"github.com/stockpulse/stockpulse/internal/server"
	"github.com/stockpulse/stockpulse/internal/sources"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "stockpulse",
	Short:   "Ticker sentiment from financial news",
	Long:    "StockPulse collects financial news from Alpha Vantage, Reddit and RSS feeds, classifies sentiment per ticker, and turns it into a trading signal.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stockpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/stockpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, API keys, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and source status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Watchlist:")
		fmt.Printf("  Tickers: %d (%d active)\n", stats.Tickers, stats.ActiveTickers)
		fmt.Println("\nNews:")
		fmt.Printf("  Total collected: %d\n", stats.TotalNews)
		fmt.Printf("  Pending analysis: %d\n", stats.PendingNews)
		fmt.Printf("  Analyzed: %d\n", stats.AnalyzedNews)
		fmt.Printf("\nSentiment snapshots: %d\n", stats.Snapshots)

		gate := cooldown.New()
		orch := collect.NewOrchestrator(buildSources(cfg, gate), gate)
		fmt.Println("\nSources:")
		for _, s := range orch.AvailableSources() {
			state := "available"
			if !s.Available {
				state = "not configured"
			}
			fmt.Printf("  %s: %s\n", s.Name, state)
		}
		return nil
	},
}

// --- watchlist command ---

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage the ticker watchlist",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tickers, err := db.ListTickers()
		if err != nil {
			return err
		}
		if len(tickers) == 0 {
			fmt.Println("Watchlist is empty. Add a ticker with: stockpulse watchlist add SYMBOL")
			return nil
		}

		fmt.Println("Watchlist:")
		for _, t := range tickers {
			icon := " "
			if t.IsActive {
				icon = "*"
			}
			line := fmt.Sprintf("  %s %s", icon, t.Symbol)
			if t.Name != nil && *t.Name != "" {
				line += " (" + *t.Name + ")"
			}
			if snap, _ := db.GetSentiment(t.Symbol); snap != nil {
				line += fmt.Sprintf("  %s %.4f", snap.Signal, snap.NormalizedScore)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add [symbol] [name]",
	Short: "Add a ticker to the watchlist",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		symbol := strings.ToUpper(args[0])
		var name *string
		if len(args) > 1 {
			name = &args[1]
		}

		id, err := db.InsertTicker(symbol, name)
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Printf("%s is already on the watchlist\n", symbol)
			return nil
		}
		fmt.Printf("Added %s to the watchlist\n", symbol)
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove [symbol]",
	Short: "Remove a ticker from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		symbol := strings.ToUpper(args[0])
		ticker, err := db.GetTicker(symbol)
		if err != nil {
			return err
		}
		if ticker == nil {
			return fmt.Errorf("%s is not on the watchlist", symbol)
		}

		if err := db.RemoveTicker(symbol); err != nil {
			return err
		}
		fmt.Printf("Removed %s from the watchlist\n", symbol)
		return nil
	},
}

func init() {
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)
}

// --- fetch command ---

var (
	fetchTicker string
	fetchHours  int
	fetchSource []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch news for watched tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var tickers []string
		if fetchTicker != "" {
			tickers = []string{strings.ToUpper(fetchTicker)}
		} else {
			tickers, err = db.ActiveTickerSymbols()
			if err != nil {
				return err
			}
			if len(tickers) == 0 {
				return fmt.Errorf("watchlist is empty; add a ticker with 'stockpulse watchlist add'")
			}
		}

		hours := fetchHours
		if hours <= 0 {
			hours = cfg.Fetch.DefaultHours
		}
		to := time.Now().UTC()
		from := to.Add(-time.Duration(hours) * time.Hour)

		gate := cooldown.New()
		collector := collect.NewCollector(db, collect.NewOrchestrator(buildSources(cfg, gate), gate))
		runner := jobs.NewRunner(jobs.NewTracker())

		result, err := runner.Run(context.Background(), jobs.JobFetchNews, func(ctx context.Context) (map[string]any, error) {
			return collector.Collect(ctx, tickers, from, to, fetchSource).Summary(), nil
		})
		if err != nil {
			return err
		}

		fmt.Println("\nFetch complete:")
		fmt.Printf("  Tickers: %v\n", result["tickers_processed"])
		fmt.Printf("  Found: %v\n", result["total_found"])
		fmt.Printf("  Saved: %v\n", result["saved"])
		fmt.Printf("  Duplicates skipped: %v\n", result["duplicates"])

		if bySource, ok := result["sources"].(map[string]int); ok && len(bySource) > 0 {
			fmt.Println("\nItems by source:")
			var names []string
			for name := range bySource {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %d\n", name, bySource[name])
			}
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchTicker, "ticker", "t", "", "Fetch a single ticker instead of the watchlist")
	fetchCmd.Flags().IntVar(&fetchHours, "hours", 0, "Override lookback window (hours)")
	fetchCmd.Flags().StringSliceVar(&fetchSource, "source", nil, "Restrict to source types (alphavantage, reddit, rss)")
}

// --- analyze command ---

var analyzeBatch int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify pending news and refresh sentiment snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		batch := analyzeBatch
		if batch <= 0 {
			batch = cfg.Analyze.BatchSize
		}

		provider := classify.CreateProvider(cfg.Classification)
		analyzer := analyze.New(db, classify.New(provider, cfg.Classification.MaxTokens), sentiment.New(db))
		enricher := enrich.New(db, 0)
		runner := jobs.NewRunner(jobs.NewTracker())

		result, err := runner.Run(context.Background(), jobs.JobAnalyzePending, func(ctx context.Context) (map[string]any, error) {
			enricher.EnrichPending(batch)
			r, err := analyzer.AnalyzePending(ctx, batch)
			if err != nil {
				return nil, err
			}
			return r.Summary(), nil
		})
		if err != nil {
			return err
		}

		fmt.Println("\nAnalysis complete:")
		fmt.Printf("  Processed: %v\n", result["processed"])
		fmt.Printf("  Analyzed: %v\n", result["analyzed"])
		fmt.Printf("  Skipped: %v\n", result["skipped"])
		fmt.Printf("  Errors: %v\n", result["errors"])

		if tickers, ok := result["tickers_updated"].([]string); ok {
			for _, ticker := range tickers {
				if snap, _ := db.GetSentiment(ticker); snap != nil {
					fmt.Printf("\n%s: %s (%s, score %.4f, confidence %.2f)\n",
						ticker, snap.Signal, snap.SentimentLabel, snap.NormalizedScore, snap.Confidence)
				}
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeBatch, "batch", "b", 0, "Override batch size")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard and job API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		gate := cooldown.New()
		orch := collect.NewOrchestrator(buildSources(cfg, gate), gate)
		provider := classify.CreateProvider(cfg.Classification)

		deps := server.Deps{
			DB:        db,
			Gate:      gate,
			Orch:      orch,
			Collector: collect.NewCollector(db, orch),
			Enricher:  enrich.New(db, 0),
			Analyzer:  analyze.New(db, classify.New(provider, cfg.Classification.MaxTokens), sentiment.New(db)),
			Runner:    jobs.NewRunner(jobs.NewTracker()),
			Config:    cfg,
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(deps, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on")
}

// buildSources wires the enabled sources from configuration.
func buildSources(cfg *config.Config, gate *cooldown.Gate) []sources.Source {
	var srcs []sources.Source

	if cfg.Sources.AlphaVantage.Enabled {
		srcs = append(srcs, sources.NewAlphaVantage(
			cfg.Sources.AlphaVantage.APIKeyEnv,
			cfg.Sources.AlphaVantage.MinRelevance,
			gate,
		))
	}
	if cfg.Sources.Reddit.Enabled {
		srcs = append(srcs, sources.NewReddit(
			cfg.Sources.Reddit.ClientIDEnv,
			cfg.Sources.Reddit.ClientSecretEnv,
			cfg.Sources.Reddit.UserAgent,
			cfg.Sources.Reddit.Subreddits,
			cfg.Sources.Reddit.MinScore,
			gate,
		))
	}
	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]sources.FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = sources.FeedConfig{URL: f.URL, Name: f.Name}
		}
		srcs = append(srcs, sources.NewRSS(feeds))
	}

	return srcs
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "stockpulse.db")
	return database.Open(dbPath)
}
