package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/media"
	"github.com/pders01/przepisy/internal/recipes"
	"github.com/pders01/przepisy/internal/search"
	"github.com/pders01/przepisy/internal/session"
	"github.com/pders01/przepisy/internal/storage"
	"github.com/pders01/przepisy/internal/tui"
	"github.com/pders01/przepisy/internal/validation"
)

var opts struct {
	configPath string
	dbPath     string
	startURL   string
	remote     string
	logLevel   string
	quiet      bool
}

var rootCmd = &cobra.Command{
	Use:           "przepisy",
	Short:         "Przeglądarka przepisów z blogów kulinarnych",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runExplorer,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	pf.StringVar(&opts.dbPath, "db", "", "Path to database file (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: off, error, warn, info, debug (overrides config)")

	f := rootCmd.Flags()
	f.StringVar(&opts.startURL, "url", "", "Start address, e.g. /explore?q=pierogi&sort=name.asc")
	f.StringVar(&opts.remote, "remote", "", "Browse another instance's API instead of the local database")
	f.BoolVar(&opts.quiet, "quiet", false, "Skip startup banner")

	rootCmd.AddCommand(versionCmd, configCmd, importCmd, refreshCmd, sourcesCmd, removeCmd, serveCmd, tokenCmd)
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.dbPath != "" {
		path, err := validation.NewPathValidator().ValidateFile(opts.dbPath)
		if err != nil {
			return nil, fmt.Errorf("invalid --db: %w", err)
		}
		cfg.Database.Path = path
		// keep the index next to an explicitly chosen database
		index, err := validation.NewPathValidator().ValidateDirectory(path + ".bleve")
		if err != nil {
			return nil, fmt.Errorf("invalid --db: %w", err)
		}
		cfg.Database.SearchIndex = index
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLocal opens the database and its search index. The returned func
// closes both.
func openLocal(cfg *config.Config) (*storage.Store, search.Searcher, func(), error) {
	store, err := storage.NewStoreWithTimeout(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	searcher := search.NewSearcher(store, cfg.Database.SearchIndex)

	closeAll := func() {
		if c, ok := searcher.(io.Closer); ok {
			if err := c.Close(); err != nil {
				debuglog.Warnf("closing search index: %v", err)
			}
		}
		if err := store.Close(); err != nil {
			debuglog.Warnf("closing database: %v", err)
		}
	}
	return store, searcher, closeAll, nil
}

// newReader picks the remote API when one is configured, the local
// database otherwise.
func newReader(cfg *config.Config) (recipes.Reader, func(), error) {
	base := cfg.Remote.BaseURL
	if opts.remote != "" {
		base = opts.remote
	}
	if base != "" {
		client, err := recipes.NewClient(base,
			recipes.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
			recipes.WithRateLimit(cfg.Remote.RequestsPerSecond),
			recipes.WithUserAgent(cfg.Import.UserAgent),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}

	store, searcher, closeAll, err := openLocal(cfg)
	if err != nil {
		return nil, nil, err
	}
	return recipes.NewService(store, searcher), closeAll, nil
}

func runExplorer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debuglog.Close()

	if !opts.quiet {
		tui.ShowBanner(cmd.OutOrStdout(), Version)
	}

	reader, closeReader, err := newReader(cfg)
	if err != nil {
		return err
	}
	defer closeReader()

	start := cfg.Explore.StartURL
	if opts.startURL != "" {
		start = opts.startURL
	}
	nav, err := explore.NewMemoryNavigator(start)
	if err != nil {
		return err
	}

	tui.ApplyTheme(cfg.UI.Colors)
	app := tui.NewApp(tui.Deps{
		Config:    cfg,
		Reader:    reader,
		Identity:  session.FromConfig(cfg.Session),
		Launcher:  media.NewLauncher(cfg),
		Navigator: nav,
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), app.Address())
	return nil
}
