package engine

import (
	"context"
	"errors"
	"sync"

	"hypertune/internal/storage"
)

// Config wires the engine's collaborators.
type Config struct {
	Store storage.Store
}

// Engine owns the process-level lifecycle of the tuning runtime: a
// caller-constructed object with explicit init and teardown instead of
// ambient global state. It holds the experiment archive; runs are
// driven by the runner package and persisted through here.
type Engine struct {
	cfg Config

	mu          sync.Mutex
	initialized bool
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.cfg.Store != nil {
		if err := e.cfg.Store.Init(ctx); err != nil {
			return err
		}
	}
	e.initialized = true
	return nil
}

func (e *Engine) Shutdown(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}
	e.initialized = false
	if e.cfg.Store != nil {
		return storage.CloseIfSupported(e.cfg.Store)
	}
	return nil
}

// Store returns the experiment archive; callers must Init first.
func (e *Engine) Store() (storage.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, errors.New("engine not initialized")
	}
	if e.cfg.Store == nil {
		return nil, errors.New("engine has no store")
	}
	return e.cfg.Store, nil
}
