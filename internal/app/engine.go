package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/voxhook/internal/actions"
	"github.com/rbright/voxhook/internal/config"
	"github.com/rbright/voxhook/internal/dispatch"
	"github.com/rbright/voxhook/internal/extract"
	"github.com/rbright/voxhook/internal/hook"
	"github.com/rbright/voxhook/internal/intent"
	"github.com/rbright/voxhook/internal/journal"
	"github.com/rbright/voxhook/internal/llm"
	"github.com/rbright/voxhook/internal/nlu"
	"github.com/rbright/voxhook/internal/output"
	"github.com/rbright/voxhook/internal/session"
)

// engine is the dispatch stack shared by listen and in-process say.
type engine struct {
	registry   *hook.Registry
	dispatcher *dispatch.Dispatcher
	executor   *dispatch.Executor
	journal    *journal.Store
}

// loadRegistry builds and seals the hook registry from the configured hooks file.
func loadRegistry(cfg config.Config, logger *slog.Logger) (*hook.Registry, bool, error) {
	file, found, err := actions.Load(cfg.HooksFile)
	if err != nil {
		return nil, found, err
	}
	if !found {
		logger.Info("hooks file not found; using built-in hooks", "path", cfg.HooksFile)
	}

	reg := hook.NewRegistry()
	env := actions.Env{Writer: output.NewWriter(cfg, logger)}
	if err := file.Register(reg, env); err != nil {
		return nil, found, fmt.Errorf("register hooks: %w", err)
	}
	reg.Seal()
	return reg, found, nil
}

// ServiceFactory builds the language-understanding backend.
type ServiceFactory func(ctx context.Context, cfg config.LLMConfig, lookup llm.LookupEnv) (nlu.Service, error)

func (r Runner) buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*engine, error) {
	reg, _, err := loadRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	newService := r.NewService
	if newService == nil {
		newService = llm.New
	}
	svc, err := newService(ctx, cfg.LLM, r.Lookup)
	if err != nil {
		return nil, err
	}

	resolver := intent.NewResolver(svc, intent.Options{
		Timeout:       cfg.Dispatch.ResolveTimeout(),
		MinConfidence: minConfidence(cfg.Dispatch.MinConfidence),
		Context:       cfg.Dispatch.Context,
		Logger:        logger,
	})
	extractor := extract.NewExtractor(svc, extract.Options{
		Timeout: cfg.Dispatch.ExtractTimeout(),
		Context: cfg.Dispatch.Context,
		Logger:  logger,
	})

	eng := &engine{
		registry:   reg,
		dispatcher: dispatch.New(reg, resolver, extractor, logger),
	}

	if cfg.Journal.Enable {
		store, err := journal.Open(cfg.Journal.Path, cfg.Journal.MaxEntries)
		if err != nil {
			return nil, err
		}
		eng.journal = store
	}

	eng.executor = dispatch.NewExecutor(dispatch.ExecutorOptions{
		Workers:         cfg.Dispatch.Workers,
		QueueSize:       cfg.Dispatch.QueueSize,
		CallbackTimeout: cfg.Dispatch.CallbackTimeout(),
		Logger:          logger,
	})

	logger.Info("engine ready",
		"hooks", reg.Len(),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"journal", cfg.Journal.Enable,
	)
	return eng, nil
}

// minConfidence maps a configured 0 to "accept every candidate"; the resolver reads 0 as its default.
func minConfidence(configured float64) float64 {
	if configured == 0 {
		return -1
	}
	return configured
}

// journalOrNil keeps a disabled journal out of session.Options as a nil interface.
func (e *engine) journalOrNil() session.Journal {
	if e.journal == nil {
		return nil
	}
	return e.journal
}

// Close drains queued callbacks and then closes the journal.
func (e *engine) Close(ctx context.Context) error {
	var errs []error
	if e.executor != nil {
		if err := e.executor.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close executor: %w", err))
		}
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	return errors.Join(errs...)
}

// shutdownTimeout gives in-flight callbacks their configured budget on exit.
func shutdownTimeout(cfg config.Config) time.Duration {
	if d := cfg.Dispatch.CallbackTimeout(); d > 0 {
		return d + time.Second
	}
	return 5 * time.Second
}
