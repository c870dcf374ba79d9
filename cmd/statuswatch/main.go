package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/statuswatch/statuswatch/internal/advisory"
	"github.com/statuswatch/statuswatch/internal/config"
	"github.com/statuswatch/statuswatch/internal/fetch"
	"github.com/statuswatch/statuswatch/internal/llm"
	"github.com/statuswatch/statuswatch/internal/notify"
	"github.com/statuswatch/statuswatch/internal/parser"
	"github.com/statuswatch/statuswatch/internal/poller"
	"github.com/statuswatch/statuswatch/internal/server"
	"github.com/statuswatch/statuswatch/internal/sqlgen"
	"github.com/statuswatch/statuswatch/internal/store"
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
	Use:     "statuswatch",
	Short:   "Vendor status page monitoring",
	Long:    "statuswatch polls vendor status pages and feeds, records a status timeline, analyzes advisories, and answers questions about service history.",
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
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(advisoriesCmd)
	rootCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("statuswatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/statuswatch/",
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
		fmt.Println("Edit it to configure sites, notifications, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Sites:")
		fmt.Printf("  Configured: %d\n", len(cfg.Sites))
		fmt.Printf("  Active in database: %d\n", stats.ActiveSites)
		fmt.Println("\nTimeline:")
		fmt.Printf("  Readings: %d\n", stats.Readings)
		fmt.Printf("  Error readings: %d\n", stats.ErrorReadings)
		fmt.Println("\nAdvisories:")
		fmt.Printf("  Total: %d\n", stats.Advisories)
		fmt.Printf("  Affecting us: %d\n", stats.AffectingUs)
		return nil
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Show the current status of every monitored site",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		states, err := st.CurrentStates()
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("No sites in the database yet. Run 'statuswatch poll' first.")
			return nil
		}

		for _, state := range states {
			checked := "never"
			if state.LastCheckedAt != nil {
				checked = state.LastCheckedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("  %-18s %-18s %s\n", state.Site.ID, "["+string(state.Status)+"]", checked)
			if state.Summary != "" {
				fmt.Printf("  %-18s %s\n", "", state.Summary)
			}
		}
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll every configured site once",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		p := buildPoller(st)
		if err := p.PollAll(cmd.Context()); err != nil {
			return err
		}

		states, err := st.CurrentStates()
		if err != nil {
			return err
		}
		fmt.Println("Poll complete:")
		for _, state := range states {
			fmt.Printf("  %-18s %s\n", state.Site.ID, state.Status)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		p := buildPoller(st)
		if err := p.Start(ctx); err != nil {
			return err
		}
		defer p.Stop()

		// Retention runs in the background on a slow cadence.
		pruneTicker := time.NewTicker(6 * time.Hour)
		defer pruneTicker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-pruneTicker.C:
					p.Prune()
				}
			}
		}()

		fmt.Println("Watching. Press Ctrl+C to stop.")
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nStopping...")
		return nil
	},
}

var (
	queryContract string
	queryRepairs  int
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a natural-language question about service history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		provider := buildProvider()
		if provider == nil {
			return fmt.Errorf("no LLM provider available; configure one under 'llm' in the config")
		}

		task := strings.Join(args, " ")
		generator := sqlgen.New(provider, st)

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		session, err := generator.Generate(ctx, task, sqlgen.Options{
			OutputContract: queryContract,
			MaxRepairs:     queryRepairs,
		})
		if err != nil {
			return err
		}

		if !session.Success {
			fmt.Printf("Query generation failed after %d attempt(s): %s\n", len(session.Attempts), session.FailureReason)
			return fmt.Errorf("session %s did not succeed", session.SessionID)
		}

		fmt.Printf("SQL (%d attempt(s)):\n%s\n\n", len(session.Attempts), session.SQL)
		printResult(session.Result)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryContract, "columns", "", "Columns the result should contain")
	queryCmd.Flags().IntVar(&queryRepairs, "max-repairs", 0, "Override the repair budget")
}

var (
	advisoriesSite    string
	advisoriesAffects bool
	advisoriesLimit   int
)

var advisoriesCmd = &cobra.Command{
	Use:   "advisories",
	Short: "List recorded advisories",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		advisories, err := st.GetAdvisories(advisoriesSite, advisoriesAffects, advisoriesLimit)
		if err != nil {
			return err
		}
		if len(advisories) == 0 {
			fmt.Println("No advisories recorded.")
			return nil
		}

		for _, a := range advisories {
			marker := " "
			if a.AffectsUs {
				marker = "!"
			}
			fmt.Printf("%s [%s/%s] %s: %s\n", marker, a.SiteID, a.Criticality, a.CreatedAt.Format("2006-01-02"), a.Title)
			if a.RelevanceReason != "" {
				fmt.Printf("    %s\n", a.RelevanceReason)
			}
		}
		return nil
	},
}

func init() {
	advisoriesCmd.Flags().StringVar(&advisoriesSite, "site", "", "Only show advisories for one site")
	advisoriesCmd.Flags().BoolVar(&advisoriesAffects, "affecting", false, "Only show advisories that affect us")
	advisoriesCmd.Flags().IntVar(&advisoriesLimit, "limit", 50, "Maximum number of advisories")
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a test notification email",
	RunE: func(cmd *cobra.Command, args []string) error {
		mailer := buildMailer()
		if mailer == nil {
			return fmt.Errorf("notifications not configured; set smtp_host, from, and to under 'notifications'")
		}
		if err := mailer.SendTest(); err != nil {
			return err
		}
		fmt.Printf("Test email sent to %s\n", cfg.Notifications.To)
		return nil
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		var generator *sqlgen.Generator
		if provider := buildProvider(); provider != nil {
			generator = sqlgen.New(provider, st)
		}

		fmt.Printf("Starting dashboard at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(st, generator, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.Open(cfg.DatabasePath())
}

func buildProvider() llm.Provider {
	return llm.CreateProvider(llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLMAPIKey(),
		OllamaURL: cfg.LLM.OllamaURL,
	})
}

func buildMailer() *notify.Mailer {
	n := cfg.Notifications
	smtpCfg := notify.SMTPConfig{
		Host:     n.SMTPHost,
		Port:     n.SMTPPort,
		Username: n.SMTPUsername,
		Password: cfg.SMTPPassword(),
		From:     n.From,
		To:       n.To,
	}
	if !smtpCfg.Configured() {
		return nil
	}
	return notify.NewMailer(smtpCfg)
}

func buildPoller(st *store.Store) *poller.Poller {
	analyzer := advisory.NewAnalyzer(buildProvider())

	var mailer poller.Mailer
	if m := buildMailer(); m != nil {
		mailer = m
	}

	return poller.New(cfg, st, fetch.New(15*time.Second), parser.New(), analyzer, mailer)
}

func printResult(result *store.QueryResult) {
	if result == nil || result.RowCount == 0 {
		fmt.Println("No rows.")
		return
	}

	fmt.Println(strings.Join(result.Columns, " | "))
	fmt.Println(strings.Repeat("-", len(strings.Join(result.Columns, " | "))))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	fmt.Printf("(%d rows)\n", result.RowCount)
}
