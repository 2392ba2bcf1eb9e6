package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSessions limits concurrent controllers to bound staged bytes.
	DefaultMaxSessions = 100
	// DefaultIdleTimeout is how long an untouched controller is kept.
	DefaultIdleTimeout = time.Hour
	// DefaultCleanupInterval is how often expired controllers are evicted.
	DefaultCleanupInterval = 5 * time.Minute
)

var (
	// ErrSessionNotFound is returned for unknown or expired ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the registry is full.
	ErrTooManySessions = errors.New("too many active sessions")
)

// Manager is the registry of live controllers. Expired or deleted
// controllers are closed, which cancels their in-flight submission and
// drops their staged bytes.
type Manager struct {
	cache       *cache.Cache
	deps        Deps
	maxSessions int
	log         *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	maxSessions     int
	idleTimeout     time.Duration
	cleanupInterval time.Duration
}

// WithMaxSessions caps the number of live controllers.
func WithMaxSessions(n int) ManagerOption {
	return func(c *managerConfig) {
		if n > 0 {
			c.maxSessions = n
		}
	}
}

// WithExpiry sets the idle timeout and the janitor interval.
func WithExpiry(idle, cleanup time.Duration) ManagerOption {
	return func(c *managerConfig) {
		if idle > 0 {
			c.idleTimeout = idle
		}
		if cleanup > 0 {
			c.cleanupInterval = cleanup
		}
	}
}

// NewManager creates a registry whose controllers share deps.
func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	cfg := managerConfig{
		maxSessions:     DefaultMaxSessions,
		idleTimeout:     DefaultIdleTimeout,
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	m := &Manager{
		cache:       cache.New(cfg.idleTimeout, cfg.cleanupInterval),
		deps:        deps,
		maxSessions: cfg.maxSessions,
		log:         deps.Logger.Named("session"),
	}
	m.cache.OnEvicted(func(id string, v interface{}) {
		if ctl, ok := v.(*Controller); ok {
			ctl.Close()
			m.log.Info("session closed", zap.String("session", id))
		}
	})
	return m
}

// Create registers a new controller in the Empty state.
func (m *Manager) Create() (*Controller, error) {
	if m.cache.ItemCount() >= m.maxSessions {
		m.cache.DeleteExpired()
		if m.cache.ItemCount() >= m.maxSessions {
			return nil, ErrTooManySessions
		}
	}

	id := uuid.New().String()
	ctl := NewController(id, m.deps)
	m.cache.SetDefault(id, ctl)

	m.log.Info("session created", zap.String("session", id))
	return ctl, nil
}

// Get returns the controller and refreshes its idle deadline.
func (m *Manager) Get(id string) (*Controller, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	ctl := v.(*Controller)
	m.cache.SetDefault(id, ctl)
	return ctl, nil
}

// Snapshot is Get followed by Controller.Snapshot.
func (m *Manager) Snapshot(id string) (*models.SessionSnapshot, error) {
	ctl, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return ctl.Snapshot(), nil
}

// Delete closes and forgets the controller.
func (m *Manager) Delete(id string) error {
	if _, ok := m.cache.Get(id); !ok {
		return ErrSessionNotFound
	}
	m.cache.Delete(id)
	return nil
}

// Count returns the number of live controllers, expired ones included until
// the janitor runs.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// Busy returns how many controllers have a submission in flight.
func (m *Manager) Busy() int {
	n := 0
	for _, item := range m.cache.Items() {
		if ctl, ok := item.Object.(*Controller); ok && ctl.Busy() {
			n++
		}
	}
	return n
}

// Close closes every controller.
func (m *Manager) Close() {
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
}
