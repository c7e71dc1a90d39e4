package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/internal/config"
	"github.com/young1lin/browsersearch/internal/handler"
	"github.com/young1lin/browsersearch/internal/mcpserver"
	"github.com/young1lin/browsersearch/internal/search"
	"github.com/young1lin/browsersearch/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int
	limit   int
	jsonOut bool
	showVer bool
)

var rootCmd = &cobra.Command{
	Use:   "browsersearch",
	Short: "Google web search through a headless browser CLI",
	Long: `browsersearch drives the agent-browser CLI to run Google searches
and returns the organic results as text or JSON. It can be used from the
command line, as an HTTP service, or as an MCP tool server.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if showVer {
			fmt.Printf("browsersearch %s (built %s)\n", Version, BuildDate)
			return
		}
		cmd.Help()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Run a single search and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup()
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var l any
		if cmd.Flags().Changed("limit") {
			l = limit
		}

		resp, err := a.manager.Search(ctx, strings.Join(args, " "), l)
		if err != nil {
			return err
		}

		if jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), search.FormatResults(resp))
		return nil
	},
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Check that agent-browser is installed, installing it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup()
		defer a.Close()

		res, err := a.searcher.Ensure(cmd.Context())
		if err != nil {
			return err
		}
		if !res.Ready {
			return fmt.Errorf("%s", res.Instructions)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "agent-browser is ready")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup()
		defer a.Close()

		// Override config with command line flags
		if port > 0 {
			a.cfg.Server.Port = port
		}

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", a.cfg.Server.Host),
			zap.Int("port", a.cfg.Server.Port),
		)

		return startServer(a)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the web_search tool over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := setup()
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := mcpserver.New(a.manager, Version, logger.L())
		if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")

	searchCmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "maximum number of results (1-10)")
	searchCmd.Flags().BoolVar(&jsonOut, "json", false, "print the response as JSON")

	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")

	rootCmd.AddCommand(searchCmd, ensureCmd, serveCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() *app {
	cfg := config.Load(cfgFile)

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	return newApp(cfg, logger.L())
}

func startServer(a *app) error {
	cfg := a.cfg

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewSearchHandler(a.manager, a.searcher),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.purgeLoop(ctx)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Print startup info
	fmt.Fprintf(os.Stderr, `
browsersearch %s
  Server: http://%s:%d
  Health: http://%s:%d/health
  Search: http://%s:%d/search?q=...

`, Version, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return err
	}

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
