package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"respite/internal/logging"
	"respite/internal/options"
	"respite/internal/platform"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := options.Load(args)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       opts.LogLevel,
		Development: opts.LogDev,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	guard, err := platform.AcquireSingleInstance(options.AppName)
	if err != nil {
		if errors.Is(err, platform.ErrAlreadyRunning) {
			logger.Info("another instance is running, asking it to show itself", zap.Error(err))
			if notifyErr := platform.NotifyRunning(options.AppName); notifyErr != nil {
				logger.Warn("running instance did not answer", zap.Error(notifyErr))
			}
			return nil
		}
		return err
	}
	defer func() {
		_ = guard.Release()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := newApplication(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer application.close()

	if opts.Headless {
		return application.runHeadless(ctx, guard)
	}
	return application.runDesktop(ctx, guard)
}
