// Package poller implements the client-side controller that repeatedly
// queries invoice status until a terminal outcome or its attempt budget
// runs out.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/config"
	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"go.uber.org/zap"
)

// State is the poller's client-local lifecycle state
type State string

const (
	StateIdle           State = "idle"
	StatePolling        State = "polling"
	StateStoppedSuccess State = "stopped-success"
	StateStoppedFailure State = "stopped-failure"
	StateStoppedTimeout State = "stopped-timeout"
)

// IsTerminal returns true once the poller has finished a run
func (s State) IsTerminal() bool {
	return s == StateStoppedSuccess || s == StateStoppedFailure || s == StateStoppedTimeout
}

// StatusSource fetches the current status of one invoice
type StatusSource interface {
	Fetch(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error)
}

// Result is the outcome of one polling run
type Result struct {
	State    State
	Record   *models.InvoiceStatus
	Attempts int
}

// Poller drives repeated status queries for one invoice at a time.
// Starting it for a new invoice number re-arms the machine from idle.
type Poller struct {
	source  StatusSource
	profile config.PollingProfile
	logger  *zap.Logger

	mu            sync.Mutex
	state         State
	invoiceNumber string
	attempts      int
	record        *models.InvoiceStatus
	lastErr       error
	cancel        context.CancelFunc
	generation    int
	done          chan Result
}

// New creates a poller with the given budget profile
func New(source StatusSource, profile config.PollingProfile, logger *zap.Logger) *Poller {
	return &Poller{
		source:  source,
		profile: profile,
		logger:  logger,
		state:   StateIdle,
	}
}

// Start begins polling for the invoice number. Any run already in
// progress is cancelled first; the attempt counter and terminal state
// reset whenever the machine re-arms.
func (p *Poller) Start(ctx context.Context, invoiceNumber string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.generation++
	generation := p.generation
	p.invoiceNumber = invoiceNumber
	p.attempts = 0
	p.record = nil
	p.lastErr = nil
	p.state = StatePolling
	p.done = make(chan Result, 1)
	done := p.done
	p.mu.Unlock()

	p.logger.Debug("Polling started",
		zap.String("invoice_number", invoiceNumber),
		zap.Duration("interval", p.profile.Interval),
		zap.Int("max_attempts", p.profile.MaxAttempts))

	go p.run(runCtx, generation, invoiceNumber, done)
}

// Stop cancels the current run. No further ticks are scheduled; a query
// already in flight is discarded when it resolves.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.state == StatePolling {
		p.state = StateIdle
	}
}

// State returns the current lifecycle state
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns the number of queries issued in the current run
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Record returns the most recently observed status record, if any
func (p *Poller) Record() *models.InvoiceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record
}

// Wait blocks until the current run finishes or the context is done
func (p *Poller) Wait(ctx context.Context) (Result, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return Result{State: StateIdle}, nil
	}

	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context, generation int, invoiceNumber string, done chan Result) {
	ticker := time.NewTicker(p.profile.Interval)
	defer ticker.Stop()

	// First query goes out immediately
	if finished := p.tick(ctx, generation, invoiceNumber, done); finished {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if finished := p.tick(ctx, generation, invoiceNumber, done); finished {
				return
			}
		}
	}
}

// tick issues one query and applies the outcome. Returns true when the
// run reached a terminal state.
func (p *Poller) tick(ctx context.Context, generation int, invoiceNumber string, done chan Result) bool {
	p.mu.Lock()
	if generation != p.generation || p.state != StatePolling {
		p.mu.Unlock()
		return true
	}
	p.attempts++
	attempts := p.attempts
	p.mu.Unlock()

	record, err := p.source.Fetch(ctx, invoiceNumber)

	p.mu.Lock()
	// The run may have been cancelled or re-armed while the query was in
	// flight; a stale response is simply ignored
	if generation != p.generation || p.state != StatePolling {
		p.mu.Unlock()
		return true
	}

	if err != nil {
		// Transport errors do not stop the run, the next tick retries
		p.lastErr = err
		p.logger.Warn("Status query failed",
			zap.String("invoice_number", invoiceNumber),
			zap.Int("attempt", attempts),
			zap.Error(err))
	} else if record != nil {
		p.record = record

		switch {
		case record.Status == models.StatusCompleted || record.PDFURL != "":
			p.finishLocked(StateStoppedSuccess, done)
			return true
		case record.Status == models.StatusFailed:
			p.finishLocked(StateStoppedFailure, done)
			return true
		}
	}

	if attempts >= p.profile.MaxAttempts {
		p.finishLocked(StateStoppedTimeout, done)
		return true
	}

	p.mu.Unlock()
	return false
}

// finishLocked records the terminal state and delivers the result.
// The caller holds the mutex.
func (p *Poller) finishLocked(state State, done chan Result) {
	p.state = state
	result := Result{State: state, Record: p.record, Attempts: p.attempts}
	invoiceNumber := p.invoiceNumber
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.logger.Debug("Polling finished",
		zap.String("invoice_number", invoiceNumber),
		zap.String("state", string(state)),
		zap.Int("attempts", result.Attempts))

	done <- result
}
