package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"slackline/internal/infra/config"
	"slackline/internal/infra/logger"
	"slackline/internal/infra/tracer"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	var err error
	switch {
	case len(os.Args) >= 2 && os.Args[1] == "daemon":
		err = runDaemon(os.Args[2:])
	case len(os.Args) >= 2 && os.Args[1] == "history":
		err = runHistory(os.Args[2:])
	default:
		err = runSend(os.Args[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`slackline - Slack message delivery

USAGE:
    slackline [FLAGS]              send a message
    slackline daemon [FLAGS]       run the async delivery worker
    slackline history [FLAGS]      show recent delivery attempts

SEND FLAGS:
    -config PATH      config file (YAML)
    -profile KEY      profile to send with (default "default")
    -channel VALUE    channel ID, or :name for a profile channel
    -text TEXT        message text
    -thread-ts TS     reply in thread
    -icon-emoji E     icon emoji
    -file PATH        file to upload (repeatable)
    -async            enqueue for the daemon instead of sending now`)
}

// setup loads config and builds the logger and tracer. The returned
// cleanup flushes both.
func setup(ctx context.Context, configPath string) (*config.Config, *slog.Logger, func(), error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = loaded
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		closeLog()
		return nil, nil, nil, err
	}

	cleanup := func() {
		shutdownTracer(ctx)
		closeLog()
	}
	return cfg, log, cleanup, nil
}

// waitForSignal blocks until SIGINT/SIGTERM or context cancellation.
func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}

// stringList collects a repeatable flag value.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
