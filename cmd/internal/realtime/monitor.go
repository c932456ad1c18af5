package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// LivenessMonitor probes every registered connection once per interval and
// terminates the ones that did not answer the previous probe.
type LivenessMonitor struct {
	interval time.Duration
	timeout  time.Duration
	conns    *Registry[*Conn]
	log      *slog.Logger
	metrics  *Metrics

	probes sync.WaitGroup
}

func NewLivenessMonitor(cfg Config, log *slog.Logger, metrics *Metrics) *LivenessMonitor {
	cfg = cfg.normalized()
	if log == nil {
		log = slog.Default()
	}
	return &LivenessMonitor{
		interval: cfg.HeartbeatInterval,
		timeout:  cfg.HeartbeatTimeout,
		conns:    NewRegistry[*Conn](),
		log:      log,
		metrics:  metrics,
	}
}

// Register starts tracking c. The connection counts as alive until probed.
func (m *LivenessMonitor) Register(c *Conn) {
	c.alive.Store(true)
	m.conns.Add(c.ID, c)
}

// Deregister stops tracking c. It reports whether c was still tracked.
func (m *LivenessMonitor) Deregister(c *Conn) bool {
	return m.conns.Remove(c.ID)
}

func (m *LivenessMonitor) Len() int { return m.conns.Len() }

// Run ticks until ctx is done, then waits for outstanding probes.
func (m *LivenessMonitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	defer m.probes.Wait()

	m.log.Info("ws.monitor.start", "interval", m.interval.String(), "timeout", m.timeout.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.sweep(ctx)
		}
	}
}

// sweep evicts connections whose last probe went unanswered and probes the rest.
func (m *LivenessMonitor) sweep(ctx context.Context) {
	m.conns.Each(func(c *Conn) bool {
		if !c.alive.Load() {
			m.evict(c)
			return true
		}
		c.alive.Store(false)
		m.probe(ctx, c)
		return true
	})
}

func (m *LivenessMonitor) probe(ctx context.Context, c *Conn) {
	m.probes.Add(1)
	go func() {
		defer m.probes.Done()
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		if err := c.Ping(pctx); err != nil {
			c.log.Debug("ws.ping.fail", "err", err)
			return
		}
		c.alive.Store(true)
	}()
}

func (m *LivenessMonitor) evict(c *Conn) {
	if !m.conns.Remove(c.ID) {
		return
	}
	if c.Terminate() {
		m.metrics.evicted()
		c.log.Info("ws.evict.liveness", "principal_id", c.Principal())
	}
}

// Close terminates every tracked connection.
func (m *LivenessMonitor) Close() {
	m.conns.Each(func(c *Conn) bool {
		if m.conns.Remove(c.ID) {
			c.Close(websocket.StatusGoingAway, "server shutting down")
		}
		return true
	})
}
