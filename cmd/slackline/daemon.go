package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"slackline/internal/adapter/history"
	"slackline/internal/usecase/delivery"
	"slackline/internal/usecase/notify"
	"slackline/internal/usecase/queue"
	"slackline/internal/usecase/registry"
	"slackline/internal/usecase/scheduling"
)

// runDaemon processes spilled async jobs and keeps the worker running
// until interrupted.
func runDaemon(args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return err
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

	worker, err := queue.NewWorker(cfg.Queue, exec, queue.DefaultRetryPolicy, reg.Find, log)
	if err != nil {
		return err
	}
	worker.Start(ctx)
	log.Info("delivery worker running", "backend", cfg.Queue.Backend, "spill_dir", cfg.Queue.SpillDir)

	if cfg.Scheduler.Enabled {
		notifier, err := notify.NewBuilder().FromConfig(cfg.Notifications).Build(reg, exec, log)
		if err != nil {
			worker.Stop()
			return err
		}
		sched := scheduling.New(notifier, log)
		for _, task := range cfg.Scheduler.Tasks {
			if err := sched.AddTask(task); err != nil {
				worker.Stop()
				return err
			}
		}
		sched.Start(ctx)
		defer sched.Stop()
		log.Info("scheduler running", "tasks", len(cfg.Scheduler.Tasks), "notifications", len(cfg.Notifications))
	}

	waitForSignal(ctx)
	log.Info("shutting down")
	worker.Stop()
	return nil
}

// runHistory prints recent delivery attempts.
func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (YAML)")
	limit := fs.Int("limit", 20, "number of attempts to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	cfg, _, cleanup, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if !cfg.History.Enabled {
		return fmt.Errorf("history is not enabled in the config")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	attempts, err := store.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		line := fmt.Sprintf("%s  %-8s profile=%s channel=%s", a.At.Format(time.RFC3339), a.Outcome, a.Profile, a.Channel)
		if a.ErrorCode != "" {
			line += " error=" + a.ErrorCode
		}
		if a.ThreadTS != "" {
			line += " thread_ts=" + a.ThreadTS
		}
		fmt.Println(line)
	}
	return nil
}
