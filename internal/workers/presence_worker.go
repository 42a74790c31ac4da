package workers

import (
	"context"
	"time"

	"creatorhub/internal/logger"
	"creatorhub/internal/services/chat"

	"gorm.io/gorm"
)

const presenceWorkerName = "presence"

// PresenceWorker keeps presence rows and room counters honest across restarts.
type PresenceWorker struct {
	db       *gorm.DB
	presence chat.PresenceService
	interval time.Duration
	// shared is set when other instances serve the same database.
	shared bool
}

func NewPresenceWorker(db *gorm.DB, presence chat.PresenceService, interval time.Duration, shared bool) *PresenceWorker {
	return &PresenceWorker{db: db, presence: presence, interval: interval, shared: shared}
}

// ResetOnStartup runs before serving. A lone instance marks every presence
// offline and zeroes counters, since none of its connections survived the
// restart. A shared instance cannot tell its own stale rows from live users
// on its peers, so it only recomputes counters.
func (w *PresenceWorker) ResetOnStartup(ctx context.Context) error {
	if w.shared {
		_, err := w.presence.Reconcile(ctx, w.db)
		logger.WorkerLog(presenceWorkerName, "startup_reconcile", err)
		return err
	}
	err := w.presence.ResetAll(ctx, w.db)
	logger.WorkerLog(presenceWorkerName, "reset", err)
	return err
}

// Run recomputes online counters on every tick until ctx is done.
func (w *PresenceWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Presence worker stopped")
			return nil
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

func (w *PresenceWorker) reconcile(ctx context.Context) {
	checked, err := w.presence.Reconcile(ctx, w.db)
	if err != nil && ctx.Err() != nil {
		return
	}
	logger.WorkerLog(presenceWorkerName, "reconcile", err)
	if err == nil {
		logger.Debug("presence counters reconciled", "rooms", checked)
	}
}
