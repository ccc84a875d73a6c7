// Package manager pools live sessions to downstream MCP servers: one
// session per registered server, opened on first use, reused by every
// caller after that, and torn down on idle timeout or explicit close.
package manager

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/repository"
	"github.com/petrel-dev/mcp-registry/internal/session"
	"github.com/petrel-dev/mcp-registry/internal/transport"
)

// DefaultIdleTimeout matches the design's 300s idle eviction window.
const DefaultIdleTimeout = 300 * time.Second

// DefaultSweepInterval is how often the eviction loop scans for idle
// connections.
const DefaultSweepInterval = 60 * time.Second

// Status is a point-in-time snapshot of one pooled connection.
type Status struct {
	ServerID     string
	State        string // "connected", "disconnected"
	ConnectedAt  time.Time
	LastActivity time.Time
	RequestCount int64
	LastError    string
}

type conn struct {
	serverID string
	tr       transport.Transport
	sess     *session.Session

	mu           sync.Mutex
	connectedAt  time.Time
	lastActivity time.Time
	requestCount int64
	lastError    string
}

func (c *conn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.requestCount++
	c.mu.Unlock()
}

func (c *conn) unhealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError != ""
}

func (c *conn) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := "connected"
	if c.lastError != "" {
		state = "unhealthy"
	}
	return Status{
		ServerID:     c.serverID,
		State:        state,
		ConnectedAt:  c.connectedAt,
		LastActivity: c.lastActivity,
		RequestCount: c.requestCount,
		LastError:    c.lastError,
	}
}

// Manager is the connection pool. Safe for concurrent use.
type Manager struct {
	store *repository.Store

	idleTimeout   time.Duration
	sweepInterval time.Duration

	mu    sync.Mutex
	conns map[string]*conn
	group singleflight.Group

	stop chan struct{}
	done chan struct{}
}

// New builds a Manager and starts its idle-eviction loop. Call Shutdown to
// stop the loop and close every pooled connection.
func New(store *repository.Store, idleTimeout, sweepInterval time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	m := &Manager{
		store:         store,
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		conns:         make(map[string]*conn),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Get returns a live session for serverID, opening one if none is pooled.
// A pooled connection that Health has marked unhealthy is closed and
// reopened rather than handed back, so one failed call doesn't poison
// every subsequent caller until the idle sweep eventually reaps it.
// Concurrent callers for the same serverID collapse onto a single Open via
// singleflight; only one of them actually dials the downstream server.
func (m *Manager) Get(ctx context.Context, serverID string) (*session.Session, error) {
	m.mu.Lock()
	c, ok := m.conns[serverID]
	m.mu.Unlock()
	if ok {
		if !c.unhealthy() {
			c.touch()
			return c.sess, nil
		}
		_ = m.Close(ctx, serverID)
	}

	v, err, _ := m.group.Do(serverID, func() (any, error) {
		m.mu.Lock()
		if c, ok := m.conns[serverID]; ok && !c.unhealthy() {
			m.mu.Unlock()
			return c, nil
		}
		m.mu.Unlock()

		c, err := m.open(ctx, serverID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.conns[serverID] = c
		m.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	c = v.(*conn)
	c.touch()
	return c.sess, nil
}

func (m *Manager) open(ctx context.Context, serverID string) (*conn, error) {
	rec, err := m.store.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	cfg, err := rec.TransportConfig()
	if err != nil {
		return nil, mcperr.Internal(err, "decoding stored transport config for %s", serverID)
	}

	tr, err := transport.New(cfg)
	if err != nil {
		return nil, mcperr.Validation("building transport for %s: %v", serverID, err)
	}

	sess, err := session.Open(ctx, tr)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &conn{
		serverID:     serverID,
		tr:           tr,
		sess:         sess,
		connectedAt:  now,
		lastActivity: now,
	}, nil
}

// Close tears a single pooled connection down in the mandated order:
// session first (which unblocks any in-flight calls), then the transport
// underneath it.
func (m *Manager) Close(ctx context.Context, serverID string) error {
	m.mu.Lock()
	c, ok := m.conns[serverID]
	if ok {
		delete(m.conns, serverID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return c.sess.Close(ctx)
}

// CloseAll closes every pooled connection.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Close(ctx, id)
	}
}

// Status reports the pool state for one server.
func (m *Manager) Status(serverID string) (Status, bool) {
	m.mu.Lock()
	c, ok := m.conns[serverID]
	m.mu.Unlock()
	if !ok {
		return Status{ServerID: serverID, State: "disconnected"}, false
	}
	return c.status(), true
}

// StatusAll reports the pool state for every currently pooled connection.
func (m *Manager) StatusAll() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]Status, 0, len(m.conns))
	for _, c := range m.conns {
		statuses = append(statuses, c.status())
	}
	return statuses
}

// Health pings serverID's pooled session with a cheap tools/list call,
// recording any failure against that connection's status.
func (m *Manager) Health(ctx context.Context, serverID string) error {
	m.mu.Lock()
	c, ok := m.conns[serverID]
	m.mu.Unlock()
	if !ok {
		return mcperr.NotFound("no pooled connection for %s", serverID)
	}

	_, err := c.sess.ListTools(ctx)
	c.mu.Lock()
	if err != nil {
		c.lastError = err.Error()
	} else {
		c.lastError = ""
	}
	c.mu.Unlock()
	return err
}

func (m *Manager) sweepLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []string
	for id, c := range m.conns {
		c.mu.Lock()
		last := c.lastActivity
		c.mu.Unlock()
		if last.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		_ = m.Close(context.Background(), id)
	}
}

// Shutdown stops the eviction loop and closes every pooled connection.
func (m *Manager) Shutdown(ctx context.Context) {
	close(m.stop)
	<-m.done
	m.CloseAll(ctx)
}
