package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pders01/przepisy/internal/api"
	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/feed"
	"github.com/pders01/przepisy/internal/plugins"
	"github.com/pders01/przepisy/internal/plugins/user"
	"github.com/pders01/przepisy/internal/recipes"
	"github.com/pders01/przepisy/internal/search"
	"github.com/pders01/przepisy/internal/session"
	"github.com/pders01/przepisy/internal/tui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		tui.ShowBanner(w, Version)
		fmt.Fprintf(w, "%s %s\n", tui.AppName, Version)
		fmt.Fprintln(w, "github.com/pders01/przepisy")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the default configuration to ~/.config/przepisy/config.toml",
	RunE: func(cmd *cobra.Command, _ []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configFile := filepath.Join(home, ".config", "przepisy", "config.toml")

		if err := config.GenerateDefaultConfig(configFile); err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", configFile)
		return nil
	},
}

var importOpts struct {
	permissive bool
}

var importCmd = &cobra.Command{
	Use:   "import <url>...",
	Short: "Import recipes from blog feeds or pages that advertise one",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *feed.Manager) error {
			m.SetPermissiveValidation(importOpts.permissive)
			var errs []error
			for _, raw := range args {
				res, err := m.AddSource(cmd.Context(), raw)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", raw, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d przepisów (%s)\n", res.Source.Title, res.Recipes, res.Source.ID)
			}
			return errors.Join(errs...)
		})
	},
}

var refreshOpts struct {
	force bool
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [source-id]",
	Short: "Fetch new recipes from imported sources",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *feed.Manager) error {
			m.SetForceRefresh(refreshOpts.force)
			if len(args) == 1 {
				res, err := m.RefreshSource(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printResult(cmd, res)
				return nil
			}
			results, err := m.RefreshAll(cmd.Context())
			for _, res := range results {
				printResult(cmd, res)
			}
			return err
		})
	},
}

func printResult(cmd *cobra.Command, res *feed.Result) {
	switch {
	case res.Skipped:
		fmt.Fprintf(cmd.OutOrStdout(), "- %s: pominięto (niedawno odświeżone)\n", res.Source.Title)
	case res.NotModified:
		fmt.Fprintf(cmd.OutOrStdout(), "- %s: bez zmian\n", res.Source.Title)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d przepisów\n", res.Source.Title, res.Recipes)
	}
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List imported sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer debuglog.Close()

		store, _, closeAll, err := openLocal(cfg)
		if err != nil {
			return err
		}
		defer closeAll()

		sources, err := store.GetAllSources()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tURL\tLAST FETCHED")
		for _, s := range sources {
			fetched := "-"
			if !s.LastFetched.IsZero() {
				fetched = s.LastFetched.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.URL, fetched)
		}
		return w.Flush()
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <source-id>",
	Short: "Remove a source and its recipes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(m *feed.Manager) error {
			if err := m.RemoveSource(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Usunięto %s\n", args[0])
			return nil
		})
	},
}

// withManager opens the local database with its index wired as a listener
// and hands a feed manager to fn.
func withManager(cmd *cobra.Command, fn func(*feed.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debuglog.Close()

	store, searcher, closeAll, err := openLocal(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	registry := plugins.NewRegistry(cfg.Import.HTTPTimeout)
	user.RegisterBuiltins(registry)

	m := feed.NewManager(store, cfg, registry)
	if l, ok := searcher.(search.UpdateListener); ok {
		m.AddUpdateListener(l)
	}
	if l, ok := searcher.(search.DeleteListener); ok {
		m.AddDeleteListener(l)
	}
	return fn(m)
}

var serveOpts struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recipe listing as JSON for remote explorers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer debuglog.Close()

		store, searcher, closeAll, err := openLocal(cfg)
		if err != nil {
			return err
		}
		defer closeAll()

		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(&api.Dependencies{Recipes: recipes.NewService(store, searcher)})
		return serve(cmd.Context(), serveOpts.addr, router, cmd)
	},
}

// serve runs handler until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, addr string, handler http.Handler, cmd *cobra.Command) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var tokenOpts struct {
	user   string
	expiry time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a session token for session.token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer debuglog.Close()

		if cfg.Session.Secret == "" {
			return errors.New("session.secret is not set")
		}
		userID := tokenOpts.user
		if userID == "" {
			userID = cfg.Session.UserID
		}
		if userID == "" {
			return errors.New("no user: pass --user or set session.user_id")
		}

		token, err := session.CreateToken(userID, []byte(cfg.Session.Secret), tokenOpts.expiry)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGenCmd)

	importCmd.Flags().BoolVar(&importOpts.permissive, "allow-local", false, "Allow localhost and private network addresses")
	refreshCmd.Flags().BoolVar(&refreshOpts.force, "force", false, "Ignore the refresh interval and cache headers")
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", "127.0.0.1:8080", "Listen address")
	tokenCmd.Flags().StringVar(&tokenOpts.user, "user", "", "User id to sign (defaults to session.user_id)")
	tokenCmd.Flags().DurationVar(&tokenOpts.expiry, "expiry", 30*24*time.Hour, "Token lifetime, 0 for none")
}
