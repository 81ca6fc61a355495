package core

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/coregx/entities/internal/logger"
	"github.com/coregx/entities/internal/util"
)

// healthPingTimeout bounds a single background ping.
const healthPingTimeout = 5 * time.Second

// healthStatus is the outcome of one ping.
type healthStatus struct {
	err error
	at  time.Time
}

// healthChecker pings a pool at a fixed interval so dead connections show up
// in DB.Healthy before a repository call hits them.
type healthChecker struct {
	db       *sql.DB
	log      logger.Logger
	interval time.Duration

	status atomic.Pointer[healthStatus]
	cancel context.CancelFunc
	done   chan struct{}
}

func newHealthChecker(db *sql.DB, log logger.Logger, interval time.Duration) *healthChecker {
	return &healthChecker{db: db, log: log, interval: interval}
}

func (h *healthChecker) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.ping(ctx)
			}
		}
	}()
}

func (h *healthChecker) ping(stop context.Context) {
	ctx, cancel := context.WithTimeout(stop, healthPingTimeout)
	defer cancel()

	err := h.db.PingContext(ctx)
	if util.IsCanceled(stop) {
		return
	}
	h.status.Store(&healthStatus{err: err, at: time.Now()})

	if err != nil {
		h.log.Warn("database health check failed", "error", err, "interval", h.interval)
		return
	}
	h.log.Debug("database health check passed", "interval", h.interval)
}

// shutdown stops the loop and waits for an in-flight ping.
func (h *healthChecker) shutdown() {
	h.cancel()
	<-h.done
}

// last reports the latest outcome. Before the first ping it reports
// healthy at the zero time.
func (h *healthChecker) last() (bool, time.Time) {
	s := h.status.Load()
	if s == nil {
		return true, time.Time{}
	}
	return s.err == nil, s.at
}
