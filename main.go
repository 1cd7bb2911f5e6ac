package main

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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/nstehr/creep/creep-core/agent"
	"github.com/nstehr/creep/creep-core/config"
	"github.com/nstehr/creep/creep-core/ipc"
	"github.com/nstehr/creep/creep-core/rules"
	"github.com/nstehr/creep/creep-core/server"
	"github.com/nstehr/creep/creep-core/storage"
)

const defaultConfigPath = "config/creep.yaml"

const banner = `
  ___ _ __ ___  ___ _ __
 / __| '__/ _ \/ _ \ '_ \
| (__| | |  __/  __/ |_) |
 \___|_|  \___|\___| .__/
                   |_|
Room terrain sidecar`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := defaultConfigPath
	if p := os.Getenv("CREEP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	fmt.Println(banner)
	slog.Info("starting creep", "config", cfgPath, "log_level", cfg.LogLevel)

	engine, err := rules.NewEngine(cfg.TileRules())
	if err != nil {
		return fmt.Errorf("compiling tile rules: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	rooms := agent.NewRegistry()
	opts := agent.Options{Store: store, MinTickLimit: cfg.MinTickLimit}

	// Each host connection gets its own agent; all agents publish into one registry.
	bridge := func(t ipc.Transport) {
		c := ipc.NewConnection(t, nil)
		agent.New(c, rooms, engine, opts).Register()
		c.ReadLoop(ctx)
	}

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return fmt.Errorf("cleaning up socket %s: %w", cfg.SocketPath, err)
	}
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listening on socket %s: %w", cfg.SocketPath, err)
	}
	defer os.Remove(cfg.SocketPath)
	slog.Info("listening on domain socket", "path", cfg.SocketPath)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return listener.Close()
	})

	// SIGHUP re-reads the config and swaps in its tile rules.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				reloadRules(cfgPath, engine)
			}
		}
	})

	g.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				slog.Error("failed to accept connection", "error", err)
				continue
			}
			slog.Info("new connection accepted")
			go bridge(ipc.NewStreamTransport(conn))
		}
	})

	if cfg.HTTPAddr != "" {
		if cfg.SlogLevel() != slog.LevelDebug {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.SetupRouter(rooms, engine, bridge),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("inspector listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("shutting down")
	return err
}

func reloadRules(path string, engine *rules.Engine) {
	if err := config.ReloadRules(path, engine); err != nil {
		slog.Error("rule reload failed, keeping current rules", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "file":
		s, err := storage.NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("opening terrain store: %w", err)
		}
		slog.Info("terrain store ready", "driver", "file", "path", cfg.FilePath)
		return s, nil
	case "postgres":
		s, err := storage.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening terrain store: %w", err)
		}
		slog.Info("terrain store ready", "driver", "postgres", "host", cfg.Database.Host)
		return s, nil
	default:
		slog.Info("terrain store disabled")
		return nil, nil
	}
}
