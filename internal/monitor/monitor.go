// Package monitor runs the scheduled session checks: token expiry and user
// inactivity. The two timers are independent; each check is an idempotent
// read-and-recompute on the session service, so overlap is harmless.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/lms_session/internal/util"
)

type SessionChecker interface {
	CheckExpiry(ctx context.Context)
	CheckInactivity(ctx context.Context)
}

type Monitor struct {
	checker            SessionChecker
	expiryInterval     time.Duration
	inactivityInterval time.Duration
	log                *zap.SugaredLogger
	wg                 sync.WaitGroup
}

func New(checker SessionChecker, cfg *util.SessionConfig, log *zap.SugaredLogger) *Monitor {
	return &Monitor{
		checker:            checker,
		expiryInterval:     cfg.ExpiryInterval,
		inactivityInterval: cfg.InactivityInterval,
		log:                log,
	}
}

// Start launches both timers. They run until ctx is canceled; Stop waits for
// them so no timer outlives the session's lifetime.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.run(ctx, m.expiryInterval, m.checker.CheckExpiry)
	go m.run(ctx, m.inactivityInterval, m.checker.CheckInactivity)
	m.log.Infow("Session monitor started",
		"expiryInterval", m.expiryInterval,
		"inactivityInterval", m.inactivityInterval,
	)
}

func (m *Monitor) Stop() {
	m.wg.Wait()
	m.log.Info("Session monitor stopped")
}

func (m *Monitor) run(ctx context.Context, interval time.Duration, check func(context.Context)) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check(ctx)
		}
	}
}
