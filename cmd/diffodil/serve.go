package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/diffodil/internal/config"
	"github.com/Sumatoshi-tech/diffodil/internal/gitcli"
	"github.com/Sumatoshi-tech/diffodil/internal/server"
)

// Server timeout constants. The websocket endpoint must not be
// write-bounded: deliveries stream for the lifetime of the session.
const (
	serverReadHeaderTimeout = 10 * time.Second
	serverIdleTimeout       = 120 * time.Second
)

func serveCmd() *cobra.Command {
	var (
		port      int
		verbosity int
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve PATH",
		Short: "Serve diffs for the git repositories below PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgErr := config.Load(func(viperCfg *viper.Viper) {
				viperCfg.Set("root", args[0])

				if cmd.Flags().Changed("port") {
					viperCfg.Set("port", port)
				}

				if verbosity > 0 {
					viperCfg.Set("verbosity", verbosity)
				}

				if staticDir != "" {
					viperCfg.Set("static_dir", staticDir)
				}
			})
			if cfgErr != nil {
				return cfgErr
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "port to listen on")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (repeatable)")
	cmd.Flags().StringVarP(&staticDir, "static", "s", "", "directory to serve the web page from")

	return cmd
}

func runServe(cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))

	repos, findErr := gitcli.FindRepos(cfg.Root)
	if findErr != nil {
		return fmt.Errorf("discover repositories: %w", findErr)
	}

	logger.Info("discovered repositories", "root", cfg.Root, "count", len(repos))

	srv := server.New(server.Config{
		Repos:     repos,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	logger.Info("diffodil listening", "addr", httpServer.Addr)

	listenErr := httpServer.ListenAndServe()
	if listenErr != nil {
		return fmt.Errorf("serve: %w", listenErr)
	}

	return nil
}
