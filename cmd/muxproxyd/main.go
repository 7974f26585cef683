// Command muxproxyd runs the stateful MUD session proxy: the WebSocket
// frontend for browsers, the outbound telnet leg to whitelisted MUD hosts,
// and the HTTP control plane.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nduval/muxproxy/internal/config"
	"github.com/nduval/muxproxy/internal/discord"
	"github.com/nduval/muxproxy/internal/httpapi"
	"github.com/nduval/muxproxy/internal/logger"
	"github.com/nduval/muxproxy/internal/script"
	"github.com/nduval/muxproxy/internal/session"
	"github.com/nduval/muxproxy/internal/wsapi"
)

func main() {
	root := &cobra.Command{
		Use:   "muxproxyd",
		Short: "stateful MUD session proxy daemon",
		RunE:  run,
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store := session.NewStore()
	session.WireDiscordSink(discord.New(cfg.DiscordWebhookTimeout))

	storeCtx, cancelStore := context.WithCancel(context.Background())
	defer cancelStore()
	go store.Run(storeCtx)

	wsHandler := wsapi.NewHandler(store, cfg)
	if cfg.DefaultScriptsFile != "" {
		bundle, err := script.LoadBundleFile(cfg.DefaultScriptsFile)
		if err != nil {
			return fmt.Errorf("load default scripts file: %w", err)
		}
		wsHandler.DefaultScripts = bundle
		logger.Info("loaded default scripts bundle", "path", cfg.DefaultScriptsFile)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/", httpapi.NewServer(store, cfg))

	addr := ":" + cfg.Port
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("muxproxyd listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("muxproxyd shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
