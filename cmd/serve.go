package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/simview/simview/internal/bundle"
	"github.com/simview/simview/internal/config"
	"github.com/simview/simview/internal/db"
	"github.com/simview/simview/internal/logview"
	"github.com/simview/simview/internal/panel"
	"github.com/simview/simview/internal/server"
	"github.com/simview/simview/internal/state"
	"github.com/simview/simview/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve [program.js]",
	Short: "Start the simulator panel server",
	Long: `Starts the panel server, shows the simulator panel, and loads the
given compiled program (if any). The panel is served at / and the
embedded page connects back over /ws/sim.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		b := bundle.New(cfg.BundleDir)

		ws, err := workspace.Active(cfg, b)
		if err != nil {
			return err
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "simview.db"))
		if err != nil {
			return err
		}
		defer database.Close()

		store := state.NewStore(database, ws.Root)

		logCh := logview.Channel(logview.NewBuffer())
		if cfg.MirrorSerial {
			logCh = logview.Multi(logCh, logview.NewWriter("serial", os.Stderr))
		}

		surface := server.NewSurface()
		registry := panel.New(surface, ws, b, store, logCh, panel.Options{
			OverridePaths: cfg.OverridePaths,
			SimURL:        cfg.SimURL,
		})

		srv := server.New(server.Config{
			Port:        cfg.Port,
			AllowAll:    cfg.AllowAllOrigins,
			SerialLimit: cfg.SerialHistoryLimit,
		}, registry, surface, b, store)

		ctx := cmd.Context()
		if err := registry.Show(ctx); err != nil {
			return err
		}

		if len(args) == 1 {
			program, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading program: %w", err)
			}
			if err := registry.Load(ctx, string(program)); err != nil {
				return fmt.Errorf("loading program: %w", err)
			}
		}

		fmt.Fprintf(os.Stderr, "simview panel at http://localhost:%d (workspace=%s)\n", cfg.Port, ws.Root)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
