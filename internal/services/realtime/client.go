package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"securecart/internal/models"
)

const DefaultMinAlertRisk = 70

// Subscription holds the fraud alert preferences of a client.
type Subscription struct {
	Enabled               bool      `json:"enabled"`
	MinRiskScore          int       `json:"minRiskScore"`
	IncludeFalsePositives bool      `json:"includeFalsePositives"`
	SubscribedAt          time.Time `json:"subscribedAt"`
}

func (s *Subscription) accepts(a models.FraudAlert) bool {
	if s == nil || !s.Enabled {
		return false
	}
	if a.FalsePositive && !s.IncludeFalsePositives {
		return false
	}
	return a.RiskScore >= s.MinRiskScore
}

// Client is one websocket session. Outbound frames are queued on a buffered
// channel drained by the connection writer.
type Client struct {
	ID          string
	UserID      string
	Username    string
	Role        string
	ConnectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64

	mu          sync.Mutex
	sub         *Subscription
	windowStart time.Time
	windowCount int
}

func NewClient(id string, claims *models.UserClaims, buffer int, now time.Time) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	c := &Client{
		ID:          id,
		UserID:      claims.UserID,
		Username:    claims.Username,
		Role:        role,
		ConnectedAt: now,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
	c.touch(now)
	return c
}

// Outbound returns the frames waiting to be written.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue never blocks; it reports false for a closed or saturated client.
func (c *Client) enqueue(frame []byte) bool {
	if c.closed() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) touch(t time.Time) { c.lastSeen.Store(t.UnixNano()) }

func (c *Client) LastActivity() time.Time { return time.Unix(0, c.lastSeen.Load()).UTC() }

func (c *Client) subscription() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

func (c *Client) subscribe(s Subscription) {
	c.mu.Lock()
	c.sub = &s
	c.mu.Unlock()
}

// allow applies the per-minute message budget. limit <= 0 disables it.
func (c *Client) allow(now time.Time, limit int) bool {
	if limit <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.windowStart) >= time.Minute {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	return c.windowCount <= limit
}
