package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/browser"
	"github.com/huddlenotify/huddlenotify/internal/config"
	"github.com/huddlenotify/huddlenotify/internal/database"
	"github.com/huddlenotify/huddlenotify/internal/dispatch"
	"github.com/huddlenotify/huddlenotify/internal/focus"
	"github.com/huddlenotify/huddlenotify/internal/notifier"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/internal/watcher"
	"github.com/huddlenotify/huddlenotify/internal/web"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

// runApp wires the page source, detection pipeline, notifier and optional
// web API, then blocks until ctx is done or the watcher fails.
func runApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withWeb bool) error {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return err
	}
	repo := database.NewRepository(db)

	store := settings.NewStore(repo, logger.With().Str("component", "settings").Logger())
	store.Load()

	page, err := openPage(cfg, logger)
	if err != nil {
		return err
	}
	defer page.Close()

	desktop, err := notifier.NewDBusDesktop(cfg.Notifier.AppName, cfg.Notifier.IconPath, cfg.Notifier.ExpireTimeout, logger)
	if err != nil {
		return err
	}
	defer desktop.Shutdown()

	focusers := focus.Chain{}
	if f, ok := page.(focus.Focuser); ok {
		focusers = append(focusers, f)
	}
	focusers = append(focusers, focus.NewX11(cfg.Focus.WindowTitle, logger))

	gatewayLog := logger.With().Str("component", "notifier").Logger()
	gateway := notifier.NewGateway(desktop, focusers, repo, gatewayLog)
	if cfg.Notifier.Chime {
		gateway.SetChime(notifier.NewPulseChime(gatewayLog))
	}

	dispatcher := dispatch.New(gateway, store, logger.With().Str("component", "dispatch").Logger(),
		dispatch.WithFocusProbe(page.HasFocus))
	defer dispatcher.Wait()

	watcherLog := logger.With().Str("component", "watcher").Logger()
	scanner := watcher.NewScanner(dispatcher.OnVoiceStart, watcherLog)
	w := watcher.New(page, scanner, store, repo, cfg.Watcher, watcherLog)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var webServer *web.Server
	if withWeb {
		webServer = web.NewServer(cfg, web.Deps{
			Repo:     repo,
			Settings: store,
			Notifier: gateway,
			Watcher:  w,
			Cooldown: dispatcher,
		}, 0, logger.With().Str("component", "web").Logger())
		gateway.SetPublisher(webServer.Hub())

		go func() {
			if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("web server error")
				cancel()
			}
		}()
		logger.Info().Str("addr", "http://"+webServer.GetAddress()).Msg("web API available")
	}

	go func() {
		if err := gateway.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("click handler stopped")
		}
	}()

	logger.Info().Msg(cfg.String())

	err = w.Start(ctx)

	if webServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if serr := webServer.Shutdown(shutdownCtx); serr != nil {
			logger.Warn().Err(serr).Msg("error shutting down web server")
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openPage(cfg *config.Config, logger zerolog.Logger) (dom.Page, error) {
	browserLog := logger.With().Str("component", "browser").Logger()
	if cfg.UseSnapshot() {
		snapshot, err := browser.OpenSnapshot(cfg.Browser.SnapshotPath, browserLog)
		if err != nil {
			return nil, err
		}
		return snapshot, nil
	}

	tab, err := browser.Connect(cfg.Browser, dom.DefaultObserveOptions(), browserLog)
	if err != nil {
		return nil, err
	}
	return tab, nil
}
