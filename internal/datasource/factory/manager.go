package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/store"
)

// ErrSwitchInProgress is returned when Switch is called while another
// switch has not finished.
var ErrSwitchInProgress = errors.New("data source switch already in progress")

// SwitchError reports a switch that was rolled back. The previous kind and
// instance stay active.
type SwitchError struct {
	From datasource.Kind
	To   datasource.Kind
	Err  error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("switching data source from %s to %s: %v", e.From, e.To, e.Err)
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}

// Creator builds data sources by kind. *Factory implements it.
type Creator interface {
	Create(ctx context.Context, kind datasource.Kind) (datasource.DataSource, error)
}

// defaultRetireDelay is how long a replaced instance stays open for
// callers that obtained it before the swap.
const defaultRetireDelay = time.Minute

// Manager holds the active data source. It is built once in the
// composition root and handed to whoever needs data; there is no global
// instance.
//
// The persisted kind and the cached instance change together under mu.
// Replaced instances are closed after retireDelay, or by Close.
type Manager struct {
	creator      Creator
	settings     store.Store
	defaultKind  datasource.Kind
	probeTimeout time.Duration
	retireDelay  time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	instance   datasource.DataSource
	retired    map[uint64]*retiree
	retiredSeq uint64
	switching  atomic.Bool
}

type retiree struct {
	ds    datasource.DataSource
	timer *time.Timer
}

// NewManager creates a manager. defaultKind is used until a kind has been
// persisted in settings.
func NewManager(creator Creator, settings store.Store, defaultKind datasource.Kind, probeTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := datasource.ParseKind(string(defaultKind)); err != nil {
		logger.Warn("invalid default data source kind, using mock", "kind", defaultKind)
		defaultKind = datasource.KindMock
	}
	return &Manager{
		creator:      creator,
		settings:     settings,
		defaultKind:  defaultKind,
		probeTimeout: probeTimeout,
		retireDelay:  defaultRetireDelay,
		logger:       logger,
		retired:      make(map[uint64]*retiree),
	}
}

// CurrentKind reads the persisted kind. An unreadable or unknown value
// falls back to the mock backend.
func (m *Manager) CurrentKind(ctx context.Context) datasource.Kind {
	value, ok, err := m.settings.GetSetting(ctx, store.KeyDataSourceKind)
	if err != nil {
		m.logger.Warn("reading data source kind, using mock", "error", err)
		return datasource.KindMock
	}
	if !ok {
		return m.defaultKind
	}
	kind, err := datasource.ParseKind(value)
	if err != nil {
		m.logger.Warn("persisted data source kind is invalid, using mock", "kind", value)
		return datasource.KindMock
	}
	return kind
}

// SetKind persists kind without probing it and drops the cached instance.
func (m *Manager) SetKind(ctx context.Context, kind datasource.Kind) error {
	if _, err := datasource.ParseKind(string(kind)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.settings.SetSetting(ctx, store.KeyDataSourceKind, string(kind)); err != nil {
		return fmt.Errorf("persisting data source kind: %w", err)
	}
	m.retireLocked(m.instance)
	m.instance = nil
	return nil
}

// Source returns the active data source, constructing it on first use. The
// kind may have been changed by another process sharing the settings
// store; the instance it replaces is retired, not closed.
func (m *Manager) Source(ctx context.Context) (datasource.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kind := m.CurrentKind(ctx)
	if m.instance != nil && m.instance.Kind() == kind {
		return m.instance, nil
	}
	ds, err := m.creator.Create(ctx, kind)
	if err != nil {
		return nil, err
	}
	m.retireLocked(m.instance)
	m.instance = ds
	return ds, nil
}

// Reset drops the cached instance; the next Source call rebuilds it.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retireLocked(m.instance)
	m.instance = nil
}

// Switch moves to kind only after a new instance answers a GetClients
// probe within the probe timeout. On failure the persisted kind and the
// live instance are left as they were and a *SwitchError is returned.
func (m *Manager) Switch(ctx context.Context, kind datasource.Kind) error {
	if !m.switching.CompareAndSwap(false, true) {
		return ErrSwitchInProgress
	}
	defer m.switching.Store(false)

	from := m.CurrentKind(ctx)
	if _, err := datasource.ParseKind(string(kind)); err != nil {
		return m.switchFailed(ctx, from, kind, err)
	}

	candidate, err := m.creator.Create(ctx, kind)
	if err != nil {
		return m.switchFailed(ctx, from, kind, err)
	}

	if err := m.probe(ctx, candidate); err != nil {
		m.closeQuietly(candidate)
		return m.switchFailed(ctx, from, kind, err)
	}

	m.mu.Lock()
	if err := m.settings.SetSetting(ctx, store.KeyDataSourceKind, string(kind)); err != nil {
		m.mu.Unlock()
		m.closeQuietly(candidate)
		return m.switchFailed(ctx, from, kind, fmt.Errorf("persisting data source kind: %w", err))
	}
	m.retireLocked(m.instance)
	m.instance = candidate
	m.mu.Unlock()

	m.logger.Info("data source switched", "from", from, "to", kind)
	return nil
}

// retireLocked schedules ds to be closed once callers that obtained it
// before the swap are done with it. m.mu must be held.
func (m *Manager) retireLocked(ds datasource.DataSource) {
	if ds == nil {
		return
	}
	m.retiredSeq++
	id := m.retiredSeq
	r := &retiree{ds: ds}
	m.retired[id] = r
	r.timer = time.AfterFunc(m.retireDelay, func() {
		m.mu.Lock()
		_, pending := m.retired[id]
		delete(m.retired, id)
		m.mu.Unlock()
		if pending {
			m.closeQuietly(ds)
		}
	})
}

// Retired returns how many replaced instances are still waiting to close.
func (m *Manager) Retired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retired)
}

// Switching reports whether a switch is in flight.
func (m *Manager) Switching() bool {
	return m.switching.Load()
}

func (m *Manager) probe(ctx context.Context, ds datasource.DataSource) error {
	if m.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()
	}
	if _, err := ds.GetClients(ctx); err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	return nil
}

func (m *Manager) switchFailed(ctx context.Context, from, to datasource.Kind, err error) error {
	m.logger.Warn("data source switch failed", "from", from, "to", to, "error", err)
	if _, cerr := m.settings.IncrementCounter(ctx, store.CounterSwitchFailed); cerr != nil {
		m.logger.Warn("incrementing counter", "counter", store.CounterSwitchFailed, "error", cerr)
	}
	return &SwitchError{From: from, To: to, Err: err}
}

func (m *Manager) closeQuietly(ds datasource.DataSource) {
	if err := ds.Close(); err != nil {
		m.logger.Warn("closing data source", "kind", ds.Kind(), "error", err)
	}
}

// Close releases the active instance and every retired one.
func (m *Manager) Close() error {
	m.mu.Lock()
	pending := make([]datasource.DataSource, 0, len(m.retired)+1)
	if m.instance != nil {
		pending = append(pending, m.instance)
		m.instance = nil
	}
	for id, r := range m.retired {
		r.timer.Stop()
		pending = append(pending, r.ds)
		delete(m.retired, id)
	}
	m.mu.Unlock()

	for _, ds := range pending {
		m.closeQuietly(ds)
	}
	return nil
}
