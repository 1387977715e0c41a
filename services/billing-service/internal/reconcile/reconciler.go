// Package reconcile replays paid Stripe checkouts through settlement so a
// lost webhook never leaves a paid installment unsettled.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/decorstudio/platform/libs/apperr"
	"github.com/decorstudio/platform/services/billing-service/internal/payments"
)

type SessionLister interface {
	CompletedSince(ctx context.Context, since time.Time, pageSize int) ([]payments.CheckoutCompleted, error)
}

type Settler interface {
	HandleEvent(ctx context.Context, evt payments.Event) (payments.Outcome, error)
}

// Leader guards the loop so that one instance reconciles at a time.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Config struct {
	Interval time.Duration
	Lookback time.Duration
	PageSize int
}

type Reconciler struct {
	sessions SessionLister
	settler  Settler
	leader   Leader
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

func New(sessions SessionLister, settler Settler, leader Leader, logger *slog.Logger, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 72 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Reconciler{sessions: sessions, settler: settler, leader: leader, logger: logger, cfg: cfg, now: time.Now}
}

func (r *Reconciler) Run(ctx context.Context) {
	if !r.lead(ctx) {
		return
	}
	defer func() {
		if err := r.leader.Release(context.Background()); err != nil {
			r.logger.Warn("reconcile: release leadership", "err", err)
		}
	}()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Run right away to catch up after downtime.
	r.Once(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Once(ctx)
		}
	}
}

// lead blocks until this instance holds leadership or ctx ends.
func (r *Reconciler) lead(ctx context.Context) bool {
	for {
		ok, err := r.leader.TryAcquire(ctx)
		wait := 30 * time.Second
		switch {
		case err != nil:
			r.logger.Error("reconcile: acquire leadership", "err", err)
			wait = 5 * time.Second
		case ok:
			r.logger.Info("reconcile: leadership acquired")
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

type Report struct {
	Seen    int
	Settled int
	Failed  int
}

// Once settles every paid session in the lookback window. Sessions that
// were already handled come back as duplicates or already paid.
func (r *Reconciler) Once(ctx context.Context) Report {
	var rep Report
	events, err := r.sessions.CompletedSince(ctx, r.now().Add(-r.cfg.Lookback), r.cfg.PageSize)
	if err != nil {
		r.logger.Error("reconcile: list checkout sessions", "err", err)
		return rep
	}
	for _, evt := range events {
		if ctx.Err() != nil {
			return rep
		}
		rep.Seen++
		out, err := r.settler.HandleEvent(ctx, evt)
		switch {
		case errors.Is(err, apperr.ErrMalformedEvent):
			r.logger.Warn("reconcile: session cannot be settled", "session_id", evt.SessionID, "err", err)
			rep.Failed++
		case err != nil:
			r.logger.Error("reconcile: settle session", "session_id", evt.SessionID, "err", err)
			rep.Failed++
		case out == payments.OutcomeSettled:
			r.logger.Warn("reconcile: settled a payment the webhook missed", "session_id", evt.SessionID,
				"quote_id", evt.QuoteID, "quote_payment_id", evt.QuotePaymentID)
			rep.Settled++
		}
	}
	return rep
}
