package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JesusEspinola/TFG/internal/config"
	"github.com/JesusEspinola/TFG/internal/logging"
)

func main() {
	var (
		cfgPath    string
		exportPath string
	)
	flag.StringVar(&cfgPath, "config", "", "path to forest configuration file (json or yaml)")
	flag.StringVar(&exportPath, "export", "", "write the scattered scene snapshot here and exit")
	flag.Parse()

	if _, err := writeConfigFromEnv(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "sync config from environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialise logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger, exportPath); err != nil {
		logger.WithError(err).Fatal("forest exited with error")
	}
}

func signalContext(logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			logger.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
