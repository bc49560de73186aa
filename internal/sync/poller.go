// Package sync refreshes the hybrid cache in the background on a cron
// schedule.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nhle/agency-dashboard/internal/datasource"
)

// SyncState represents the current state of a refresh job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the state of a single refresher.
type SyncStatus struct {
	Name     string
	State    SyncState
	LastSync time.Time
	Error    error
}

// Refresher is anything the poller can refresh. *hybrid.Adapter
// implements it.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// DefaultSchedule is used when the configured schedule is empty.
const DefaultSchedule = "@every 2m"

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// Poller runs registered refreshers on a cron schedule.
type Poller struct {
	cron       *cron.Cron
	schedule   string
	logger     *slog.Logger
	refreshers []Refresher
	statuses   map[string]*SyncStatus
	timeout    time.Duration
	mu         gosync.Mutex
	running    bool
	now        func() time.Time
}

// New creates a Poller for schedule, a robfig/cron spec such as
// "@every 2m" or "*/5 * * * *".
func New(schedule string, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Poller{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		schedule: schedule,
		logger:   logger,
		statuses: make(map[string]*SyncStatus),
		timeout:  fetchTimeout,
		now:      time.Now,
	}
}

// Register adds a refresher. Registering after Start is allowed; the next
// tick picks it up.
func (p *Poller) Register(r Refresher) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshers = append(p.refreshers, r)
	p.statuses[r.Name()] = &SyncStatus{Name: r.Name(), State: SyncIdle}
}

// Start schedules RefreshAll and starts the cron runner.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if _, err := p.cron.AddFunc(p.schedule, func() {
		if err := p.RefreshAll(ctx); err != nil {
			p.logger.Warn("scheduled refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling refresh %q: %w", p.schedule, err)
	}
	p.cron.Start()
	p.running = true
	p.logger.Info("scheduled cache refresh", "schedule", p.schedule)
	return nil
}

// Stop halts the scheduler and returns a context that is done once any
// running refresh has finished.
func (p *Poller) Stop() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	return p.cron.Stop()
}

// RefreshAll runs every registered refresher concurrently and joins their
// errors.
func (p *Poller) RefreshAll(ctx context.Context) error {
	p.mu.Lock()
	refreshers := make([]Refresher, len(p.refreshers))
	copy(refreshers, p.refreshers)
	p.mu.Unlock()

	errs := make([]error, len(refreshers))
	var wg gosync.WaitGroup
	for i, r := range refreshers {
		i, r := i, r
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = p.refresh(ctx, r)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RefreshNow runs the named refresher immediately.
func (p *Poller) RefreshNow(ctx context.Context, name string) error {
	p.mu.Lock()
	var target Refresher
	for _, r := range p.refreshers {
		if r.Name() == name {
			target = r
			break
		}
	}
	p.mu.Unlock()

	if target == nil {
		return fmt.Errorf("no refresher named %q", name)
	}
	return p.refresh(ctx, target)
}

// GetStatuses returns the status of every refresher ordered by name.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (p *Poller) refresh(ctx context.Context, r Refresher) error {
	name := r.Name()
	p.setStatus(name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	if err := r.Refresh(ctx); err != nil {
		p.setStatus(name, SyncError, err)
		p.logger.Warn("refresh failed", "refresher", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	p.setStatus(name, SyncIdle, nil)
	p.logger.Debug("refresh done", "refresher", name, "took", p.now().Sub(start))
	return nil
}

// setStatus updates the sync status of a refresher.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = p.now()
	}
}

// SourceProvider returns the active data source. *factory.Manager
// implements it.
type SourceProvider interface {
	Source(ctx context.Context) (datasource.DataSource, error)
}

// ActiveSource refreshes whichever data source is active at tick time, so a
// backend switch does not need to re-register anything. Sources without a
// Refresh method are left alone.
type ActiveSource struct {
	Provider SourceProvider
}

// Name implements Refresher.
func (a ActiveSource) Name() string { return "active-source" }

// Refresh implements Refresher.
func (a ActiveSource) Refresh(ctx context.Context) error {
	ds, err := a.Provider.Source(ctx)
	if err != nil {
		return err
	}
	if r, ok := ds.(Refresher); ok {
		return r.Refresh(ctx)
	}
	return nil
}
