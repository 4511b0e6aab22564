// Package workers contains the background workers started by `distr serve`.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// Observer receives worker outcomes. *metrics.Metrics implements it.
type Observer interface {
	StatusObserved(targetID string, status domain.StatusType)
	CheckCompleted(targetID string, outdated bool, err error)
	UpdateApplied(targetID string, err error)
}

type nopObserver struct{}

func (nopObserver) StatusObserved(string, domain.StatusType) {}
func (nopObserver) CheckCompleted(string, bool, error)       {}
func (nopObserver) UpdateApplied(string, error)              {}

// Recorder receives journal entries. *journal.SQLiteJournal implements it.
type Recorder interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
}

// =============================================================================
// Periodic Runner
// =============================================================================

// periodic runs cycle immediately on Start and then every interval until
// Stop. Each cycle is bounded by the interval.
type periodic struct {
	interval time.Duration
	cycle    func(ctx context.Context)

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *periodic) start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go p.run()
}

func (p *periodic) stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *periodic) run() {
	defer p.wg.Done()

	// Run immediately on start
	p.runCycle()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runCycle()
		}
	}
}

func (p *periodic) runCycle() {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()
	p.cycle(ctx)
}

// forEachTarget calls fn for every target with at most maxConcurrent calls in
// flight, each bounded by timeout.
func forEachTarget(ctx context.Context, targets []string, maxConcurrent int, timeout time.Duration, fn func(ctx context.Context, targetID string)) {
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, id := range targets {
		wg.Add(1)
		go func(targetID string) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			targetCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			fn(targetCtx, targetID)
		}(id)
	}

	wg.Wait()
}
