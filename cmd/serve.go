package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/umeshbist27/notetaking/internal/api"
	"github.com/umeshbist27/notetaking/internal/config"
	"github.com/umeshbist27/notetaking/internal/keymap"
	"github.com/umeshbist27/notetaking/internal/logging"
	"github.com/umeshbist27/notetaking/internal/notes"
	"github.com/umeshbist27/notetaking/internal/session"
	"github.com/umeshbist27/notetaking/internal/ws"
)

func newServeCommand(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the notes server",
		Long: `Start the notes server.

Examples:
  notetaking serve                                   # in-memory notes on :8080
  notetaking serve --storage disk --data ./notes     # notes kept on disk
  NOTETAKING_EDITOR_MAX_DEPTH=100 notetaking serve   # deeper undo history`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "address to listen on")
	flags.String("storage", config.DriverMemory, "note storage driver (memory, disk)")
	flags.String("data", "notes", "directory of the disk storage driver")

	_ = v.BindPFlag("server.addr", flags.Lookup("addr"))
	_ = v.BindPFlag("storage.driver", flags.Lookup("storage"))
	_ = v.BindPFlag("storage.path", flags.Lookup("data"))

	return cmd
}

// serve runs the server until ctx is done, then closes every session so
// pending edits are saved.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	service := notes.NewService(notes.ServiceConfig{Store: store, Logger: logger})
	manager := session.NewManager(session.ManagerConfig{Logger: logger})
	hub := ws.NewHub()

	server := api.NewServer(api.ServerConfig{
		Notes:   service,
		Manager: manager,
		Hub:     hub,
		Keymap:  keymap.Default(),
		Logger:  logger,
		Editor: api.EditorConfig{
			CaptureDelay:   cfg.Editor.CaptureDelay,
			GraceDelay:     cfg.Editor.GraceDelay,
			MaxDepth:       cfg.Editor.MaxDepth,
			AutosaveDelay:  cfg.Editor.AutosaveDelay,
			IndicatorDelay: cfg.Editor.SavedIndicator,
		},
	})

	if disk, ok := store.(*notes.DiskStore); ok && cfg.Storage.Watch {
		changes, err := disk.Watch(ctx, logger)
		if err != nil {
			return fmt.Errorf("watch %s: %w", disk.BasePath(), err)
		}

		go reloadChanges(ctx, service, changes, logger)
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}

	// Configure HTTP server with timeouts
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	logger.Info("server started", "addr", listener.Addr().String(), "storage", cfg.Storage.Driver)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	err = errors.Join(err, server.Shutdown(shutdownCtx))

	manager.CloseAll()

	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")

	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notes.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverDisk:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", cfg.Storage.Path, err)
		}

		store := notes.NewDiskStore(cfg.Storage.Path)

		all, err := store.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", cfg.Storage.Path, err)
		}

		logger.Info("disk storage opened", "path", cfg.Storage.Path, "notes", len(all))

		return store, nil
	default:
		return notes.NewMemoryStore(), nil
	}
}

// reloadChanges reports notes edited on disk to the service, which forwards
// them to open sessions.
func reloadChanges(ctx context.Context, service *notes.Service, changes <-chan notes.Change, logger *slog.Logger) {
	for change := range changes {
		if err := service.Reload(ctx, change.ID); err != nil {
			logger.Warn("failed to reload note", "note", change.ID, "error", err)
		}
	}
}
