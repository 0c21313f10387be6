package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/avoid/internal/app"
	"github.com/ayusman/avoid/internal/config"
	"github.com/ayusman/avoid/internal/hook"
	"github.com/ayusman/avoid/internal/link"
	"github.com/ayusman/avoid/internal/logger"
	"github.com/ayusman/avoid/internal/server"
	"github.com/ayusman/avoid/internal/store"
	"github.com/ayusman/avoid/internal/telemetry"
	"github.com/ayusman/avoid/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "avoid: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}

	publisher := telemetry.NewPublisher()
	frames := telemetry.NewFrameSlot()

	a, err := app.New(app.Config{
		Source:          cfg.Source,
		Detection:       cfg.Detection,
		PitchInverted:   cfg.PitchInverted,
		MotionThreshold: cfg.MotionThreshold,
		StreamWidth:     cfg.StreamWidth,
		Publisher:       publisher,
		Frames:          frames,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	var st *store.Store
	var session *store.Session
	if cfg.DBPath != "" {
		st, err = store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open flight log: %w", err)
		}
		defer st.Close()

		session = &store.Session{Source: cfg.Source, PitchInverted: cfg.PitchInverted}
		if err := st.Sessions().Create(session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		a.AddSink(store.NewFlightRecorder(st, session.ID))
		log.Info().Str("session", session.ID).Str("db", st.Path()).Msg("flight log open")
	}

	if cfg.SerialPort != "" {
		l, err := link.Open(cfg.SerialPort, link.PortOptions{BaudRate: cfg.SerialBaud}, log)
		if err != nil {
			return err
		}
		defer l.Close()
		a.AddSink(l)
	}

	if cfg.Hook != "" {
		h := hook.New(hook.NewExecutor(cfg.Hook, cfg.HookTimeout), log)
		defer h.Close()
		a.AddSink(h)
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	detection := cfg.Detection
	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Publisher: publisher,
		Frames:    frames,
		Detection: &detection,
		Logger:    logger.Component(log, "server"),
	})

	if err := a.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Addr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitFn := func() error { return wait(ctx, a, serveErr, log) }
	if cfg.Tray {
		t := tray.New(publisher, log)
		t.OnToggle(a.SetEnabled)
		t.OnQuit(stop)
		dashboard := dashboardURL(cfg.Addr)
		t.OnDashboard(func() {
			if err := openBrowser(dashboard); err != nil {
				log.Warn().Err(err).Str("url", dashboard).Msg("open dashboard")
			}
		})
		err = runWithTray(t, waitFn, stop)
	} else {
		err = waitFn()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	a.Stop()

	if session != nil {
		if err := st.Sessions().End(session.ID, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Msg("end session")
		}
	}

	return err
}

// wait blocks until a signal arrives, the source ends or the HTTP server
// fails.
func wait(ctx context.Context, a *app.App, serveErr <-chan error, log zerolog.Logger) error {
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return nil
	case <-a.Done():
		log.Info().Msg("capture finished")
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// trayUI is the part of the tray runWithTray drives.
type trayUI interface {
	Run()
	Quit()
}

// runWithTray runs ui on the calling goroutine while waitFn blocks elsewhere.
// Whichever ends first ends the other; waitFn's error is returned.
func runWithTray(ui trayUI, waitFn func() error, stop func()) error {
	result := make(chan error, 1)
	go func() {
		result <- waitFn()
		ui.Quit()
	}()
	ui.Run()
	stop()
	return <-result
}

// findWebDir searches for the dashboard directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.avoid/web.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".avoid", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
