// Package realtime pushes fraud alerts, transaction updates and live
// statistics to dashboard clients over websockets.
//
// Clients join rooms on connect (user_<id>, role_<role>) and on request
// (fraud_alerts, live_stats). With a Redis bridge configured, every event
// raised on one instance is fanned out to the clients of all instances.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"securecart/internal/config"
	"securecart/internal/models"
	"securecart/internal/repositories/cache"
	"securecart/internal/services/transaction"
)

// Authenticator validates the token a client connects with.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*models.UserClaims, error)
}

// StatsSource produces the live dashboard figures.
type StatsSource interface {
	LiveStats(ctx context.Context) (*models.LiveStats, error)
}

// HistorySource lists recent fraud alerts. transaction.Service implements it.
type HistorySource interface {
	Alerts(ctx context.Context, q transaction.AlertQuery) ([]models.FraudAlert, error)
}

// ThresholdStore reads and changes the model's fraud threshold (0..1).
// SetFraudThreshold persists the change; ApplyFraudThreshold only updates
// the running detector.
type ThresholdStore interface {
	FraudThreshold() float64
	SetFraudThreshold(ctx context.Context, t float64) error
	ApplyFraudThreshold(t float64) error
}

// Bridge carries events between instances. *cache.PubSub implements it.
type Bridge interface {
	Publish(ctx context.Context, channel string, env cache.Envelope) error
	Subscribe(ctx context.Context, handle func(channel string, env cache.Envelope), channels ...string) error
}

type Deps struct {
	Auth       Authenticator
	Stats      StatsSource
	History    HistorySource
	Thresholds ThresholdStore
	Bridge     Bridge
}

type Options struct {
	AuthRequired      bool
	AllowedOrigins    []string
	MaxMessageSize    int64
	MessagesPerMinute int
	PingInterval      time.Duration
	StatsInterval     time.Duration
	CleanupInterval   time.Duration
	StaleAfter        time.Duration
	AlertQueueSize    int
	SendBuffer        int
}

func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	return Options{
		AuthRequired:      cfg.AuthRequired,
		AllowedOrigins:    cfg.AllowedOrigins,
		MaxMessageSize:    cfg.MaxMessageSize,
		MessagesPerMinute: cfg.MessagesPerMinute,
		PingInterval:      cfg.PingInterval,
		StatsInterval:     cfg.StatsInterval,
		CleanupInterval:   cfg.CleanupInterval,
		StaleAfter:        cfg.StaleAfter,
		AlertQueueSize:    cfg.AlertQueueSize,
	}
}

func (o *Options) defaults() {
	if o.StatsInterval <= 0 {
		o.StatsInterval = 30 * time.Second
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Minute
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	if o.AlertQueueSize <= 0 {
		o.AlertQueueSize = 256
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	publishTimeout      = 2 * time.Second
)

var (
	errNotAuthorized    = errors.New("insufficient privileges")
	errInvalidThreshold = errors.New("invalid threshold value")
)

// Hub tracks clients and rooms and delivers events to them.
type Hub struct {
	id    string
	deps  Deps
	opts  Options
	now   func() time.Time
	start time.Time

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	alerts chan models.FraudAlert
}

func NewHub(deps Deps, opts Options) *Hub {
	opts.defaults()
	now := func() time.Time { return time.Now().UTC() }
	return &Hub{
		id:      uuid.NewString(),
		deps:    deps,
		opts:    opts,
		now:     now,
		start:   now(),
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		alerts:  make(chan models.FraudAlert, opts.AlertQueueSize),
	}
}

// SetHistory attaches the alert history source. Call it before Run.
func (h *Hub) SetHistory(src HistorySource) {
	h.deps.History = src
}

// Register adds c, joins its user and role rooms and greets it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.join(c, UserRoom(c.UserID))
	h.join(c, RoleRoom(c.Role))
	total := len(h.clients)
	h.mu.Unlock()

	h.sendTo(c, EventConnectionEstablished, connectionPayload{
		SessionID:   c.ID,
		UserID:      c.UserID,
		Username:    c.Username,
		Role:        c.Role,
		ConnectedAt: c.ConnectedAt,
		SystemStatus: SystemStatus{
			Status:           "operational",
			ConnectedClients: total,
			UptimeSeconds:    int64(h.now().Sub(h.start).Seconds()),
			LastUpdated:      h.now(),
		},
	})
	log.Printf("🔌 WebSocket client connected: %s (%s)", c.Username, c.ID)

	if c.Role == models.RoleAdmin {
		at := c.ConnectedAt
		h.Emit(RoleRoom(models.RoleAdmin), EventAdminConnected, adminPresence{
			AdminUsername: c.Username, SessionID: c.ID, ConnectedAt: &at,
		})
	}
}

// Unregister removes c from every room and closes it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	for name, members := range h.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, name)
		}
	}
	h.mu.Unlock()
	c.Close()

	if !ok {
		return
	}
	log.Printf("🔌 WebSocket client disconnected: %s (%s)", c.Username, c.ID)
	if c.Role == models.RoleAdmin {
		at := h.now()
		h.Emit(RoleRoom(models.RoleAdmin), EventAdminDisconnected, adminPresence{
			AdminUsername: c.Username, SessionID: c.ID, DisconnectedAt: &at,
		})
	}
}

// join must be called with h.mu held.
func (h *Hub) join(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		h.join(c, room)
	}
	h.mu.Unlock()
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) members(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) all() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Emit sends event to every member of room.
func (h *Hub) Emit(room, event string, data any) {
	h.emitWhere(h.members(room), event, data, nil)
}

func (h *Hub) emitWhere(targets []*Client, event string, data any, keep func(*Client) bool) int {
	if len(targets) == 0 {
		return 0
	}
	frame, err := encode(event, data)
	if err != nil {
		log.Printf("❌ Failed to encode %s: %v", event, err)
		return 0
	}
	sent := 0
	for _, c := range targets {
		if keep != nil && !keep(c) {
			continue
		}
		if c.enqueue(frame) {
			sent++
		} else if !c.closed() {
			log.Printf("⚠️ Dropping slow websocket client %s", c.ID)
			go h.Unregister(c)
		}
	}
	return sent
}

func (h *Hub) sendTo(c *Client, event string, data any) {
	h.emitWhere([]*Client{c}, event, data, nil)
}

func (h *Hub) sendError(c *Client, msg string) {
	h.sendTo(c, EventError, errorPayload{Message: msg})
}

// PublishAlert queues a fraud alert for local delivery and fans it out to
// the other instances.
func (h *Hub) PublishAlert(a models.FraudAlert) {
	h.enqueueAlert(a)
	h.bridgePublish(ChannelFraudAlerts, EventFraudAlert, a)
}

func (h *Hub) enqueueAlert(a models.FraudAlert) {
	select {
	case h.alerts <- a:
	default:
		log.Printf("⚠️ Fraud alert queue full, dropping %s", a.ID)
	}
}

func (h *Hub) deliverAlert(a models.FraudAlert) {
	h.emitWhere(h.members(RoomFraudAlerts), EventFraudAlert, a, func(c *Client) bool {
		return c.subscription().accepts(a)
	})
	if a.UserID != "" {
		h.Emit(UserRoom(a.UserID), EventUserFraudAlert, a)
	}
	if a.AlertLevel == models.AlertCritical {
		h.Emit(RoleRoom(models.RoleAdmin), EventCriticalFraudAlert, a)
	}
	log.Printf("🚨 Fraud alert sent: %s (Risk: %d)", a.ID, a.RiskScore)
}

// PublishTransaction pushes a processed transaction to the live dashboard.
func (h *Hub) PublishTransaction(t *models.Transaction) {
	u := TransactionUpdate{
		Type:             "transaction_processed",
		Timestamp:        h.now(),
		TransactionID:    t.ID,
		UserID:           t.UserID,
		Amount:           t.Amount,
		Merchant:         t.MerchantName,
		Status:           t.Status,
		RiskScore:        t.RiskScore,
		ProcessingTimeMs: t.ProcessingMs,
	}
	h.Emit(RoomLiveStats, EventTransactionUpdate, u)
	h.bridgePublish(ChannelTransactionUpdates, EventTransactionUpdate, u)
}

// Notify sends a system notification to roles, or to everyone when roles
// is empty.
func (h *Hub) Notify(kind, message, severity string, roles ...string) Notification {
	if severity == "" {
		severity = "info"
	}
	n := Notification{
		ID:          uuid.NewString(),
		Type:        kind,
		Message:     message,
		Severity:    severity,
		Timestamp:   h.now(),
		TargetRoles: roles,
	}
	h.deliverNotification(n)
	h.bridgePublish(ChannelSystemNotifications, EventSystemNotification, n)
	log.Printf("📣 System notification sent: %s", kind)
	return n
}

func (h *Hub) deliverNotification(n Notification) {
	if len(n.TargetRoles) == 0 {
		h.emitWhere(h.all(), EventSystemNotification, n, nil)
		return
	}
	for _, role := range n.TargetRoles {
		h.Emit(RoleRoom(role), EventSystemNotification, n)
	}
}

func (h *Hub) ConnectionsInfo() ConnectionsInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info := ConnectionsInfo{
		TotalConnections: len(h.clients),
		ClientsByRole:    map[string]int{models.RoleAdmin: 0, models.RoleAnalyst: 0, models.RoleUser: 0},
		Rooms:            make(map[string]int, len(h.rooms)),
		LastUpdated:      h.now(),
	}
	users := make(map[string]struct{})
	for _, c := range h.clients {
		info.ClientsByRole[c.Role]++
		users[c.UserID] = struct{}{}
	}
	info.ActiveUsers = len(users)
	for name, members := range h.rooms {
		info.Rooms[name] = len(members)
	}
	return info
}

// HandleMessage dispatches one inbound frame from c.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, frame []byte) {
	now := h.now()
	c.touch(now)
	if !c.allow(now, h.opts.MessagesPerMinute) {
		h.sendError(c, "rate limit exceeded")
		return
	}

	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil || msg.Event == "" {
		h.sendError(c, "malformed message")
		return
	}

	switch msg.Event {
	case EventSubscribeFraudAlerts:
		h.handleSubscribe(c, msg.Data)
	case EventRequestLiveStats:
		h.handleLiveStats(ctx, c)
	case EventPing:
		h.sendTo(c, EventPong, pongPayload{Timestamp: now})
	case EventGetFraudHistory:
		h.handleHistory(ctx, c, msg.Data)
	case EventUpdateFraudThreshold:
		h.handleThreshold(ctx, c, msg.Data)
	default:
		h.sendError(c, "unknown event "+msg.Event)
	}
}

func decodeData(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func (h *Hub) handleSubscribe(c *Client, raw json.RawMessage) {
	var req subscribeRequest
	if err := decodeData(raw, &req); err != nil {
		h.sendError(c, "Subscription failed")
		return
	}
	sub := Subscription{
		Enabled:               true,
		MinRiskScore:          DefaultMinAlertRisk,
		IncludeFalsePositives: req.IncludeFalsePositives,
		SubscribedAt:          h.now(),
	}
	if req.Enabled != nil {
		sub.Enabled = *req.Enabled
	}
	if req.MinRiskScore != nil {
		sub.MinRiskScore = *req.MinRiskScore
	}
	c.subscribe(sub)
	h.Join(c, RoomFraudAlerts)
	h.sendTo(c, EventSubscriptionConfirmed, subscriptionPayload{Type: RoomFraudAlerts, Preferences: sub})
}

func (h *Hub) liveStats(ctx context.Context) (*models.LiveStats, error) {
	if h.deps.Stats == nil {
		return nil, errors.New("live statistics are not available")
	}
	stats, err := h.deps.Stats.LiveStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.ConnectedClients = h.ConnectionsInfo().TotalConnections
	return stats, nil
}

func (h *Hub) handleLiveStats(ctx context.Context, c *Client) {
	stats, err := h.liveStats(ctx)
	if err != nil {
		log.Printf("⚠️ Live stats failed: %v", err)
		h.sendError(c, "Failed to get live stats")
		return
	}
	h.sendTo(c, EventLiveStatsUpdate, stats)
	h.Join(c, RoomLiveStats)
}

func (h *Hub) handleHistory(ctx context.Context, c *Client, raw json.RawMessage) {
	var req historyRequest
	if err := decodeData(raw, &req); err != nil || h.deps.History == nil {
		h.sendError(c, "Failed to get fraud history")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultHistoryLimit
	}
	if req.Limit > maxHistoryLimit {
		req.Limit = maxHistoryLimit
	}
	q := transaction.AlertQuery{
		MinRiskScore:          req.Filters.MinRiskScore,
		Limit:                 req.Limit,
		IncludeFalsePositives: req.Filters.IncludeFalsePositives,
	}
	if req.Filters.Hours > 0 {
		q.Since = h.now().Add(-time.Duration(req.Filters.Hours) * time.Hour)
	}

	alerts, err := h.deps.History.Alerts(ctx, q)
	if err != nil {
		log.Printf("⚠️ Fraud history failed: %v", err)
		h.sendError(c, "Failed to get fraud history")
		return
	}
	if c.Role == models.RoleUser {
		own := alerts[:0]
		for _, a := range alerts {
			if a.UserID == c.UserID {
				own = append(own, a)
			}
		}
		alerts = own
	}
	h.sendTo(c, EventFraudHistoryResponse, historyResponse{
		History:        alerts,
		TotalCount:     len(alerts),
		FiltersApplied: req.Filters,
	})
}

// handleThreshold takes a 0..100 value from an admin and stores it as the
// 0..1 model threshold.
func (h *Hub) handleThreshold(ctx context.Context, c *Client, raw json.RawMessage) {
	if c.Role != models.RoleAdmin {
		h.sendError(c, "Insufficient privileges")
		return
	}
	update, err := h.UpdateThreshold(ctx, raw, c.Username)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.sendTo(c, EventThresholdUpdateSuccess, thresholdSuccess{ThresholdType: update.ThresholdType, NewValue: update.NewValue})
}

// UpdateThreshold validates and applies a threshold request and broadcasts
// the change to admins and analysts.
func (h *Hub) UpdateThreshold(ctx context.Context, raw json.RawMessage, by string) (*ThresholdUpdate, error) {
	if h.deps.Thresholds == nil {
		return nil, errors.New("threshold updates are not available")
	}
	var req thresholdRequest
	if err := decodeData(raw, &req); err != nil || req.Threshold == nil {
		return nil, errInvalidThreshold
	}
	value := *req.Threshold
	if value < 0 || value > 100 {
		return nil, errInvalidThreshold
	}
	if req.Type == "" {
		req.Type = "risk_score"
	}

	old := h.deps.Thresholds.FraudThreshold() * 100
	if err := h.deps.Thresholds.SetFraudThreshold(ctx, value/100); err != nil {
		return nil, fmt.Errorf("failed to update threshold: %w", err)
	}
	update := ThresholdUpdate{
		Type:          "threshold_updated",
		ThresholdType: req.Type,
		OldValue:      old,
		NewValue:      value,
		UpdatedBy:     by,
		Timestamp:     h.now(),
	}
	h.deliverThreshold(update)
	h.bridgePublish(ChannelThresholdUpdates, EventThresholdUpdated, update)
	log.Printf("🔐 Fraud threshold updated by %s: %s = %.1f", by, req.Type, value)
	return &update, nil
}

func (h *Hub) deliverThreshold(u ThresholdUpdate) {
	h.Emit(RoleRoom(models.RoleAdmin), EventThresholdUpdated, u)
	h.Emit(RoleRoom(models.RoleAnalyst), EventThresholdUpdated, u)
}
