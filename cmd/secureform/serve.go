package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-secureform/components/validate"
	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/ratelimit"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, formsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the form validation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.settings
			if strings.TrimSpace(addr) != "" {
				settings.Server.Addr = addr
			}
			if strings.TrimSpace(formsDir) != "" {
				settings.FormsDir = formsDir
			}

			store, err := a.loadForms(settings.FormsDir)
			if err != nil {
				return err
			}

			sinks := events.Multi{events.NewZapLogger(a.logger)}
			var async *events.Async
			if path := strings.TrimSpace(settings.EventsDB); path != "" {
				db, err := events.OpenSQLite(path, events.WithStoreLogger(a.logger))
				if err != nil {
					return err
				}
				defer db.Close()
				async = events.NewAsync(db, events.WithAsyncLogger(a.logger))
				sinks = append(sinks, async)
			}

			component := validate.New(
				validate.WithRoutePath(settings.Server.RoutePath),
				validate.WithForms(store),
				validate.WithLimiter(ratelimit.New(ratelimit.WithLogger(a.logger))),
				validate.WithEventLogger(sinks),
				validate.WithLogger(a.logger),
				validate.WithClientLimit(rate.Limit(settings.Client.Rate), settings.Client.Burst, settings.Client.IdleTimeout),
			)

			mux := http.NewServeMux()
			pattern, err := component.RegisterRoutes(mux, "/")
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:         settings.Server.Addr,
				Handler:      mux,
				ReadTimeout:  settings.Server.ReadTimeout,
				WriteTimeout: settings.Server.WriteTimeout,
			}

			a.logger.Info("serving forms",
				zap.String("addr", settings.Server.Addr),
				zap.String("pattern", pattern),
				zap.Strings("forms", store.Names()),
			)

			err = serve(cmd.Context(), server, component, settings.Server.ShutdownTimeout)
			if async != nil {
				ctx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
				defer cancel()
				if cerr := async.Close(ctx); cerr != nil {
					a.logger.Warn("event queue not drained", zap.Error(cerr), zap.Int64("dropped", async.Dropped()))
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&formsDir, "forms", "", "directory of form definitions (defaults to forms_dir)")
	return cmd
}

// serve runs the HTTP server and the client janitor until ctx ends or the
// server fails, then shuts the server down gracefully.
func serve(ctx context.Context, server *http.Server, component *validate.Component, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := component.Janitor(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
