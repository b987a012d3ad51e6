package realtime

import (
	"encoding/json"
	"time"
)

// Inbound events
const (
	EventSubscribeFraudAlerts = "subscribe_to_fraud_alerts"
	EventRequestLiveStats     = "request_live_stats"
	EventPing                 = "ping"
	EventGetFraudHistory      = "get_fraud_history"
	EventUpdateFraudThreshold = "update_fraud_threshold"
)

// Outbound events
const (
	EventConnectionEstablished  = "connection_established"
	EventAdminConnected         = "admin_connected"
	EventAdminDisconnected      = "admin_disconnected"
	EventSubscriptionConfirmed  = "subscription_confirmed"
	EventLiveStatsUpdate        = "live_stats_update"
	EventPong                   = "pong"
	EventFraudAlert             = "fraud_alert"
	EventUserFraudAlert         = "user_fraud_alert"
	EventCriticalFraudAlert     = "critical_fraud_alert"
	EventTransactionUpdate      = "transaction_update"
	EventSystemNotification     = "system_notification"
	EventFraudHistoryResponse   = "fraud_history_response"
	EventThresholdUpdated       = "threshold_updated"
	EventThresholdUpdateSuccess = "threshold_update_success"
	EventError                  = "error"
)

// Rooms
const (
	RoomFraudAlerts = "fraud_alerts"
	RoomLiveStats   = "live_stats"
)

func UserRoom(userID string) string { return "user_" + userID }
func RoleRoom(role string) string   { return "role_" + role }

// Redis channels shared by every instance.
const (
	ChannelFraudAlerts         = "fraud_alerts"
	ChannelSystemNotifications = "system_notifications"
	ChannelTransactionUpdates  = "transaction_updates"
	ChannelThresholdUpdates    = "threshold_updates"
)

// Message is the frame format in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

type subscribeRequest struct {
	Enabled               *bool `json:"enabled"`
	MinRiskScore          *int  `json:"min_risk_score"`
	IncludeFalsePositives bool  `json:"include_false_positives"`
}

type historyFilters struct {
	MinRiskScore          int  `json:"min_risk_score"`
	IncludeFalsePositives bool `json:"include_false_positives"`
	Hours                 int  `json:"hours"`
}

type historyRequest struct {
	Limit   int            `json:"limit"`
	Filters historyFilters `json:"filters"`
}

type thresholdRequest struct {
	Threshold *float64 `json:"threshold"`
	Type      string   `json:"type"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type pongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// SystemStatus is sent with connection_established.
type SystemStatus struct {
	Status           string    `json:"status"`
	ConnectedClients int       `json:"connectedClients"`
	UptimeSeconds    int64     `json:"uptimeSeconds"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

type connectionPayload struct {
	SessionID    string       `json:"sessionId"`
	UserID       string       `json:"userId"`
	Username     string       `json:"username"`
	Role         string       `json:"role"`
	ConnectedAt  time.Time    `json:"connectedAt"`
	SystemStatus SystemStatus `json:"systemStatus"`
}

type adminPresence struct {
	AdminUsername  string     `json:"adminUsername"`
	SessionID      string     `json:"sessionId"`
	ConnectedAt    *time.Time `json:"connectedAt,omitempty"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

type subscriptionPayload struct {
	Type        string       `json:"type"`
	Preferences Subscription `json:"preferences"`
}

// TransactionUpdate is pushed to the live_stats room.
type TransactionUpdate struct {
	Type             string    `json:"type"`
	Timestamp        time.Time `json:"timestamp"`
	TransactionID    string    `json:"transactionId"`
	UserID           string    `json:"userId"`
	Amount           float64   `json:"amount"`
	Merchant         string    `json:"merchant"`
	Status           string    `json:"status"`
	RiskScore        int       `json:"riskScore"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
}

// Notification is a system_notification payload.
type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	TargetRoles []string  `json:"targetRoles,omitempty"`
}

// ThresholdUpdate is broadcast to admins and analysts.
type ThresholdUpdate struct {
	Type          string    `json:"type"`
	ThresholdType string    `json:"thresholdType"`
	OldValue      float64   `json:"oldValue"`
	NewValue      float64   `json:"newValue"`
	UpdatedBy     string    `json:"updatedBy"`
	Timestamp     time.Time `json:"timestamp"`
}

type thresholdSuccess struct {
	ThresholdType string  `json:"thresholdType"`
	NewValue      float64 `json:"newValue"`
}

type historyResponse struct {
	History        any            `json:"history"`
	TotalCount     int            `json:"totalCount"`
	FiltersApplied historyFilters `json:"filtersApplied"`
}

// ConnectionsInfo describes the connected clients.
type ConnectionsInfo struct {
	TotalConnections int            `json:"totalConnections"`
	ClientsByRole    map[string]int `json:"clientsByRole"`
	ActiveUsers      int            `json:"activeUsers"`
	Rooms            map[string]int `json:"rooms"`
	LastUpdated      time.Time      `json:"lastUpdated"`
}
