package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"slackline/internal/adapter/history"
	"slackline/internal/domain"
	"slackline/internal/usecase/delivery"
	"slackline/internal/usecase/queue"
	"slackline/internal/usecase/registry"
)

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (YAML)")
	profileKey := fs.String("profile", domain.DefaultProfileKey, "profile key")
	channel := fs.String("channel", "", "channel ID, or :name for a profile channel")
	text := fs.String("text", "", "message text")
	threadTS := fs.String("thread-ts", "", "reply in thread")
	iconEmoji := fs.String("icon-emoji", "", "icon emoji")
	async := fs.Bool("async", false, "enqueue for the daemon instead of sending now")
	var files stringList
	fs.Var(&files, "file", "file to upload (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channel == "" {
		return fmt.Errorf("-channel is required")
	}

	ctx := context.Background()
	cfg, log, cleanup, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := registry.Shared()
	if err := reg.LoadConfig(cfg); err != nil {
		return err
	}
	profile, err := reg.Find(*profileKey)
	if err != nil {
		return err
	}

	opts := []delivery.Option{}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, delivery.WithRecorder(store))
	}
	exec := delivery.NewExecutor(cfg, log, opts...)

	req := &domain.DeliveryRequest{
		Profile:   profile,
		ThreadTS:  *threadTS,
		IconEmoji: *iconEmoji,
	}
	// A leading colon marks a symbolic profile channel name.
	if name, ok := strings.CutPrefix(*channel, ":"); ok {
		req.Channel = name
		req.ValidateKnownChannel = true
	} else {
		req.Channel = *channel
	}
	if flagPassed(fs, "text") {
		req.Text = domain.String(*text)
	}
	if req.Files, err = openFiles(files); err != nil {
		return err
	}

	if *async {
		// Enqueue without starting the worker: the job spills to disk
		// and the daemon picks it up.
		worker, err := queue.NewWorker(cfg.Queue, exec, queue.DefaultRetryPolicy, reg.Find, log)
		if err != nil {
			return err
		}
		id, err := worker.Enqueue(req)
		if err != nil {
			return err
		}
		worker.Stop()
		fmt.Printf("enqueued %s\n", id)
		return nil
	}

	result, err := exec.Deliver(ctx, req)
	if err != nil {
		return err
	}
	if result.Delivered {
		fmt.Printf("sent (thread_ts=%s)\n", result.ThreadTS)
	} else {
		fmt.Println("skipped")
	}
	return nil
}

func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func openFiles(paths []string) ([]domain.FileWrapper, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	readers := make([]io.Reader, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return domain.WrapFiles(readers)
}
