package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeusync/gridkit/internal/injector"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a .yaml or .toml config file")
	flag.Parse()

	app, err := injector.InitializeApp(injector.ConfigPath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing gridsim:", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, app); err != nil {
		app.Logger.Error("gridsim failed", log.Error(err))
		app.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, app *injector.App) error {
	g, ctx := errgroup.WithContext(ctx)
	simDone := make(chan struct{})

	g.Go(func() error {
		defer close(simDone)
		return app.Sim.Run(ctx)
	})

	if app.Config.Metrics.Enabled {
		srv := &http.Server{
			Addr:              app.Config.Metrics.Address,
			Handler:           promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			app.Logger.Info("serving metrics", log.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-simDone:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
