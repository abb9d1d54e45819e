package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Compactor is a bounded in-memory structure that can drop idle entries,
// such as a rate limiter.
type Compactor interface {
	Compact() int
}

// HousekeepingReport says what one cleanup pass removed.
type HousekeepingReport struct {
	RefreshTokens int64
	AuditEntries  int64
	LimiterKeys   int
	Failures      int
}

// HousekeepingService periodically sweeps the session ledger, compacts
// the rate limiters and prunes old audit entries so none of them grows
// without bound.
type HousekeepingService struct {
	Ledger     *SessionLedger
	Audit      *Auditor
	Compactors []Compactor
	Logger     *slog.Logger
	Interval   time.Duration

	// Internal channels for lifecycle management
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(ledger *SessionLedger, audit *Auditor, logger *slog.Logger, interval time.Duration, compactors ...Compactor) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Ledger:     ledger,
		Audit:      audit,
		Compactors: compactors,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run cleanup immediately on startup
	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs one cleanup pass. Each task is independent: a failure
// is logged and the next tick tries again.
func (s *HousekeepingService) RunOnce(ctx context.Context) HousekeepingReport {
	var report HousekeepingReport
	s.Logger.Debug("starting housekeeping cleanup")

	if s.Ledger != nil {
		n, err := s.Ledger.SweepExpired(ctx)
		if err != nil {
			s.Logger.Error("failed to sweep refresh tokens", "error", err)
			report.Failures++
		} else {
			report.RefreshTokens = n
		}
	}

	if s.Audit != nil {
		n, err := s.Audit.Prune(ctx, time.Now())
		if err != nil {
			s.Logger.Error("failed to prune audit log", "error", err)
			report.Failures++
		} else {
			report.AuditEntries = n
		}
	}

	for _, c := range s.Compactors {
		report.LimiterKeys += c.Compact()
	}

	s.Logger.Info("housekeeping cleanup completed",
		"refresh_tokens_deleted", report.RefreshTokens,
		"audit_entries_deleted", report.AuditEntries,
		"limiter_keys_dropped", report.LimiterKeys,
		"failures", report.Failures,
	)
	return report
}
