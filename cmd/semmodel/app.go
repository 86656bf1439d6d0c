package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/c360studio/semmodel/config"
	"github.com/c360studio/semmodel/events"
	"github.com/c360studio/semmodel/llm"
	"github.com/c360studio/semmodel/metrics"
	"github.com/c360studio/semmodel/storage"
	"github.com/c360studio/semmodel/workflow"
)

// appOptions selects which parts of the composition root a command needs.
type appOptions struct {
	controller bool
	store      bool
	metrics    bool
}

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *storage.RunStore
	metrics    *metrics.Metrics
	publisher  *events.Publisher
	controller *workflow.Controller

	closers []func()
}

func newApp(flags *globalFlags, opts appOptions) (*app, error) {
	logger, err := newLogger(flags.logLevel, flags.logFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(opts appOptions) error {
	if opts.store || opts.controller {
		store, err := storage.Open(a.cfg.Store.Path, a.logger)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("Failed to close run store", "error", err)
			}
		})
	}
	if !opts.controller {
		return nil
	}

	if opts.metrics && a.cfg.MetricsEnabled() {
		a.metrics = metrics.New()
	}

	if a.cfg.Events.NATSURL != "" {
		pub, closeFn, err := events.Connect(a.cfg.Events.NATSURL, a.cfg.Events.SubjectPrefix, a.logger)
		if err != nil {
			return err
		}
		a.publisher = pub
		a.closers = append(a.closers, closeFn)
		a.logger.Info("Publishing run events", "url", a.cfg.Events.NATSURL, "prefix", a.cfg.Events.SubjectPrefix)
	}

	registry, err := a.cfg.Registry(os.Getenv)
	if err != nil {
		return err
	}

	var (
		recorders []llm.CallRecorder
		observers []workflow.Observer
	)
	recorders = append(recorders, a.store)
	observers = append(observers, a.store)
	if a.publisher != nil {
		recorders = append(recorders, a.publisher)
		observers = append(observers, a.publisher)
	}
	if a.metrics != nil {
		recorders = append(recorders, a.metrics)
		observers = append(observers, a.metrics)
	}

	clientOpts := []llm.ClientOption{
		llm.WithTimeout(a.cfg.LLM.Timeout),
		llm.WithRetryConfig(a.cfg.LLM.Retry),
		llm.WithLogger(a.logger),
		llm.WithCallRecorder(llm.MultiRecorder(recorders...)),
	}
	if a.cfg.LLM.ProxyURL != "" {
		proxy, err := url.Parse(a.cfg.LLM.ProxyURL)
		if err != nil {
			return fmt.Errorf("llm.proxy_url: %w", err)
		}
		clientOpts = append(clientOpts, llm.WithProxy(proxy))
	}
	if a.cfg.LLM.RequestsPerSecond > 0 {
		clientOpts = append(clientOpts, llm.WithRateLimit(a.cfg.LLM.RequestsPerSecond, a.cfg.LLM.Burst))
	}
	client := llm.NewClient(registry, clientOpts...)

	var invokerOpts []llm.InvokerOption
	if a.cfg.LLM.Temperature != nil {
		invokerOpts = append(invokerOpts, llm.WithTemperature(*a.cfg.LLM.Temperature))
	}

	a.controller = workflow.NewController(
		llm.NewInvoker(client, invokerOpts...),
		a.cfg.ControllerConfig(),
		workflow.WithLogger(a.logger),
		workflow.WithObserver(workflow.MultiObserver(observers...)),
	)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
