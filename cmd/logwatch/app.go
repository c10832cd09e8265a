package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"logwatch/internal/activitylog"
	"logwatch/internal/config"
	"logwatch/internal/logging"
	"logwatch/internal/metrics"
	"logwatch/internal/watcher"
)

var errNotDirectory = errors.New("not a directory")

type environment struct {
	getenv     func(string) string
	openSource func(backend string) (watcher.Source, error)
	signals    <-chan os.Signal
}

func openSource(backend string) (watcher.Source, error) {
	switch backend {
	case config.BackendFSNotify:
		return watcher.NewFSNotifySource()
	default:
		return watcher.NewInotifySource()
	}
}

func runWithEnv(args []string, out, errOut io.Writer, env environment) int {
	options, err := parseArgs(args, out, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitCodeSuccess
		}
		fmt.Fprintf(errOut, "logwatch: %v\n", err)
		return exitCodeUsage
	}

	cfg, err := config.Load(env.getenv)
	if err != nil {
		fmt.Fprintf(errOut, "logwatch: %v\n", err)
		return exitCodeUsage
	}
	logger := logging.NewLoggerWithOutput(cfg.Level(), errOut)

	root, err := resolveRoot(options.Root)
	if err != nil {
		logger.Error("invalid watch root", map[string]string{
			"path":  options.Root,
			"error": err.Error(),
		})
		return exitCodeUsage
	}

	source, err := env.openSource(cfg.Backend)
	if err != nil {
		logger.Error("notification facility unavailable", map[string]string{
			"backend": cfg.Backend,
			"error":   err.Error(),
		})
		return exitCodeFacility
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := watchShutdownSignals(logger, cancel, env.signals)
	defer stopSignals()

	return watchTree(ctx, root, cfg, source, out, logger)
}

// resolveRoot returns the absolute, symlink-free form of path and requires it
// to name a directory.
func resolveRoot(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", errNotDirectory, resolved)
	}
	return resolved, nil
}

// watchTree owns source from here on and always releases it before
// returning.
func watchTree(ctx context.Context, root string, cfg config.Config, source watcher.Source, out io.Writer, logger *logging.Logger) int {
	counters := &metrics.Registry{}
	registry := watcher.NewRegistry(source, cfg.MaxWatches)
	sink := activitylog.New(activitylog.Options{
		Path:   cfg.LogFile,
		Stdout: out,
		Logger: logger,
	})

	shutdown := newShutdownSequence(logger)
	shutdown.Add("watches", registry.RemoveAll)
	shutdown.Add("source", source.Close)
	shutdown.Add("activity log", sink.Close)
	if cfg.MetricsFile != "" {
		shutdown.Add("metrics", func() error {
			return writeMetricsFile(cfg.MetricsFile, counters)
		})
	}

	throttle, err := watcher.NewAccessThrottle(cfg.ThrottlePolicy, cfg.ThrottleWindow, cfg.ThrottleCapacity, time.Now)
	if err != nil {
		logger.Error("access throttle unavailable", map[string]string{"error": err.Error()})
		_ = shutdown.Run()
		return exitCodeUsage
	}
	dispatcher, err := watcher.NewDispatcher(watcher.Options{
		Source:   source,
		Registry: registry,
		Throttle: throttle,
		Recorder: sink,
		Logger:   logger,
		Metrics:  counters,
	})
	if err != nil {
		logger.Error("event dispatcher unavailable", map[string]string{"error": err.Error()})
		_ = shutdown.Run()
		return exitCodeFacility
	}

	result := watcher.Walk(root, registry, logger)
	counters.AddWatches(result.Registered)
	counters.AddWatchFailures(result.Failed)
	logger.Info("logwatch running", map[string]string{
		"root":           root,
		"backend":        cfg.Backend,
		"active_watches": strconv.Itoa(registry.Len()),
		"failed_watches": strconv.Itoa(result.Failed),
		"max_watches":    strconv.Itoa(registry.Capacity()),
		"log_file":       cfg.LogFile,
	})

	if err := dispatcher.Run(ctx); err != nil {
		logger.Error("event loop stopped", map[string]string{"error": err.Error()})
	}

	logger.Info("stopping logwatch", nil)
	if err := shutdown.Run(); err != nil {
		logger.Warn("shutdown incomplete", map[string]string{"error": err.Error()})
	}
	logger.Info("logwatch stopped", counters.Snapshot().Fields())
	return exitCodeSuccess
}

// writeMetricsFile replaces path atomically so a textfile collector never
// sees a partial write.
func writeMetricsFile(path string, counters *metrics.Registry) error {
	temp := path + ".tmp"
	file, err := os.Create(temp)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	writeErr := counters.WritePrometheus(file)
	closeErr := file.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		return fmt.Errorf("rename metrics file: %w", err)
	}
	return nil
}
