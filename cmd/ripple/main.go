package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/bus"
	"github.com/brunodmn/ripple/internal/conn"
	"github.com/brunodmn/ripple/internal/convo"
	"github.com/brunodmn/ripple/internal/outbound"
	"github.com/brunodmn/ripple/internal/roster"
	"github.com/brunodmn/ripple/internal/runtime"
	"github.com/brunodmn/ripple/internal/session"
	"github.com/brunodmn/ripple/internal/tui"
	"github.com/brunodmn/ripple/internal/typing"
	"github.com/brunodmn/ripple/internal/unread"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	serverFlag := flag.String("server", "", "server URL (overrides config)")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		runtime.Module(runtime.Params{Profile: profile, ServerURL: *serverFlag}),
		fx.Provide(func(b *bus.Bus, r *roster.Model, store *convo.Store, queue *outbound.Queue,
			signal *typing.Signal, tracker *unread.Tracker, mgr *conn.Manager,
			sess *session.Context, logger *zap.Logger) *tui.App {
			return tui.New(profile, b, r, store, queue, signal, tracker, mgr, sess, logger)
		}),
		fx.Invoke(registerTUI),
		// The terminal belongs to tview, fx must not write to it.
		fx.NopLogger,
	)

	app.Run()
}

func registerTUI(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *tui.App, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := app.Run(); err != nil {
					logger.Error("tui exited", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			app.Stop()
			return nil
		},
	})
}
