package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-job-center/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// CenterSnapshotProvider provides current center stats snapshots.
type CenterSnapshotProvider interface {
	Stats() core.CenterStats
}

// SnapshotPoller periodically exports Center Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	centersMu sync.RWMutex
	centers   map[string]CenterSnapshotProvider

	queued      *prom.GaugeVec
	active      *prom.GaugeVec
	outstanding *prom.GaugeVec
	delayed     *prom.GaugeVec
	completed   *prom.GaugeVec
	rejected    *prom.GaugeVec
	workers     *prom.GaugeVec
	running     *prom.GaugeVec

	stateMu     sync.Mutex
	pollRunning bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: defaultNamespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:    interval,
		centers:     make(map[string]CenterSnapshotProvider),
		queued:      gauge("center_queued", "Queued jobs per center and category.", "center", "category"),
		active:      gauge("center_active", "Jobs currently executing per center.", "center"),
		outstanding: gauge("center_outstanding", "Dispatched jobs not yet completed per center.", "center"),
		delayed:     gauge("center_delayed", "Delayed dispatches waiting for their time per center.", "center"),
		completed:   gauge("center_completed_total", "Completed job count snapshot.", "center"),
		rejected:    gauge("center_rejected_total", "Rejected job count snapshot.", "center"),
		workers:     gauge("center_workers", "Worker count per center.", "center"),
		running:     gauge("center_running", "Center running state (1=running, 0=stopped).", "center"),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.queued, &p.active, &p.outstanding, &p.delayed,
		&p.completed, &p.rejected, &p.workers, &p.running,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}
	return p, nil
}

// AddCenter adds or replaces a center snapshot provider by name.
func (p *SnapshotPoller) AddCenter(name string, provider CenterSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "center")
	p.centersMu.Lock()
	p.centers[name] = provider
	p.centersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.pollRunning {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.pollRunning = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.pollRunning {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.pollRunning = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.centersMu.RLock()
	defer p.centersMu.RUnlock()

	for name, provider := range p.centers {
		stats := provider.Stats()
		for _, cat := range stats.Categories {
			p.queued.WithLabelValues(name, cat.Category.String()).Set(float64(cat.Queued))
		}
		p.active.WithLabelValues(name).Set(float64(stats.Active))
		p.outstanding.WithLabelValues(name).Set(float64(stats.Outstanding))
		p.delayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.completed.WithLabelValues(name).Set(float64(stats.Completed))
		p.rejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.workers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Running {
			p.running.WithLabelValues(name).Set(1)
		} else {
			p.running.WithLabelValues(name).Set(0)
		}
	}
}
