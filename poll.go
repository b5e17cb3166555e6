package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xanderflood/arcadehub/pkg/config"
	"github.com/xanderflood/arcadehub/pkg/gpio"
	"github.com/xanderflood/arcadehub/pkg/lamp"
	"github.com/xanderflood/arcadehub/pkg/poller"
)

//providerFactory opens a gpio backend by name
type providerFactory func(backend string) (gpio.Provider, error)

func runPoll(c *cli.Context) error {
	logger, err := newLogger(c.GlobalBool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	loader := config.NewLoader(logger, c.GlobalString("config"))
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	// only the newest config matters, and the watcher is the only sender
	reloads := make(chan *config.Config, 1)
	loader.Watch(func(next *config.Config) {
		select {
		case <-reloads:
		default:
		}
		reloads <- next
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return pollLoop(ctx, logger, gpio.NewProvider, cfg, reloads)
}

//session one open backend and the poller built on it
type session struct {
	sp     gpio.Provider
	poller *poller.Poller
}

//openSession opens cfg's backend and builds a poller over its buttons. The
//backend is closed again if anything after opening it fails.
func openSession(newProvider providerFactory, logger *zap.SugaredLogger, cfg *config.Config) (s *session, err error) {
	sp, err := newProvider(cfg.Backend)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, sp.Close())
		}
	}()

	bindings, err := buildBindings(sp, cfg)
	if err != nil {
		return nil, err
	}

	p, err := poller.New(logger, cfg.PressInterval, cfg.HeldInterval, bindings...)
	if err != nil {
		return nil, err
	}
	return &session{sp: sp, poller: p}, nil
}

//pollLoop polls cfg until ctx is done, restarting on every config received
//from reloads. A config that cannot be opened is dropped and polling
//resumes with the last one that worked.
func pollLoop(ctx context.Context, logger *zap.SugaredLogger, newProvider providerFactory, cfg *config.Config, reloads <-chan *config.Config) error {
	s, err := openSession(newProvider, logger, cfg)
	if err != nil {
		return err
	}

	for {
		next, err := drain(ctx, logger, s.poller, reloads)
		closeErr := s.sp.Close()
		if next == nil {
			return multierr.Append(err, closeErr)
		}
		if closeErr != nil {
			logger.Warnw("Failed closing gpio backend", "error", closeErr)
		}

		if s, err = openSession(newProvider, logger, next); err == nil {
			logger.Infow("Config changed, restarted poller", "buttons", len(next.Buttons))
			cfg = next
			continue
		}

		logger.Warnw("Keeping previous config", "error", err)
		if s, err = openSession(newProvider, logger, cfg); err != nil {
			return fmt.Errorf("failed reopening previous config: %w", err)
		}
	}
}

//drain runs p and logs its events until ctx is done or a new config
//arrives. It returns the newest config received, or nil when ctx stopped it.
func drain(ctx context.Context, logger *zap.SugaredLogger, p *poller.Poller, reloads <-chan *config.Config) (*config.Config, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()

	var next *config.Config
	for {
		select {
		case e, ok := <-p.Events():
			if !ok {
				err := <-done
				if next != nil {
					return next, nil
				}
				if errors.Is(err, context.Canceled) {
					return nil, nil
				}
				return nil, err
			}
			logEvent(logger, e)
		case c := <-reloads:
			next = c
			cancel()
		}
	}
}

func logEvent(logger *zap.SugaredLogger, e poller.Event) {
	fields := []interface{}{
		"button", e.Number,
		"from", e.From.String(),
		"to", e.To.String(),
		"check", e.Check.String(),
	}
	if e.Description != "" {
		fields = append(fields, "description", e.Description)
	}
	if e.HasKeyCode {
		fields = append(fields, "keyCode", e.KeyCode)
	}
	logger.Infow("Button state changed", fields...)
}

//buildBindings opens every configured button and lamp
func buildBindings(sp gpio.Provider, cfg *config.Config) ([]poller.Binding, error) {
	bindings := make([]poller.Binding, 0, len(cfg.Buttons))
	for _, bc := range cfg.Buttons {
		b, err := newButton(sp, bc)
		if err != nil {
			return nil, fmt.Errorf("failed setting up button %d: %w", bc.Number, err)
		}

		binding := poller.Binding{Button: b}
		if bc.LampPin != "" {
			pin, err := sp.OutputPin(bc.LampPin)
			if err != nil {
				return nil, fmt.Errorf("failed setting up lamp for %s: %w", b, err)
			}
			l := lamp.New(pin, bc.LampInverted)
			l.Set(false)
			binding.Lamp = l
		}
		bindings = append(bindings, binding)
	}
	return bindings, nil
}
