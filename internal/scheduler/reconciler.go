// Package scheduler runs periodic maintenance of the member directory.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/standby/internal/logger"
)

// Target restores directory entries that went missing.
type Target interface {
	Reconcile(ctx context.Context) (int, error)
}

// Sweeper drops orphaned directory keys. Only some backends have any.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Reconciler keeps the directory in line with the registry
type Reconciler struct {
	target   Target
	sweeper  Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewReconciler creates a reconciler. sweeper may be nil.
func NewReconciler(target Target, sweeper Sweeper, log logger.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		target:   target,
		sweeper:  sweeper,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic reconciliation
func (r *Reconciler) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Reconcile(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reconciler and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Reconcile runs one pass. Failures are logged and retried on the next tick.
func (r *Reconciler) Reconcile(ctx context.Context) {
	restored, err := r.target.Reconcile(ctx)
	if err != nil {
		r.logger.Error("directory reconciliation failed", logger.Error(err))
	} else if restored > 0 {
		r.logger.Info("directory reconciled", logger.Int("restored", restored))
	} else {
		r.logger.Debug("directory in sync")
	}

	if r.sweeper == nil {
		return
	}
	swept, err := r.sweeper.Sweep(ctx)
	if err != nil {
		r.logger.Warn("directory sweep failed", logger.Error(err))
		return
	}
	if swept > 0 {
		r.logger.Info("swept orphaned directory entries", logger.Int("count", swept))
	}
}
