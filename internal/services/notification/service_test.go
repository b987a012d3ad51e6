package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"securecart/internal/models"
)

type fakeSettings struct {
	notifications *models.NotificationSettings
	api           *models.ApiSettings
	err           error
}

func (f *fakeSettings) Notifications(ctx context.Context) (*models.NotificationSettings, error) {
	return f.notifications, f.err
}

func (f *fakeSettings) API(ctx context.Context) (*models.ApiSettings, error) {
	return f.api, f.err
}

type MockReportMarker struct {
	mock.Mock
}

func (m *MockReportMarker) MarkNotified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type captured struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func (c *captured) server(t *testing.T, status int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func testAlert(risk int) models.FraudAlert {
	return models.FraudAlert{
		ID:            "alert_txn_1",
		TransactionID: "txn_1",
		Amount:        2500,
		Currency:      "USD",
		MerchantName:  "Crypto Exchange",
		RiskScore:     risk,
		AlertLevel:    models.AlertLevelFor(risk),
		Location:      models.Location{Country: "Nigeria", City: "Lagos"},
	}
}

func TestSign(t *testing.T) {
	body := []byte(`{"event":"test"}`)
	sig := Sign("secret", body)

	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("secret", []byte(`{}`), sig))
}

func TestDispatch(t *testing.T) {
	slack := &captured{}
	hook := &captured{}
	slackSrv := slack.server(t, http.StatusOK)
	hookSrv := hook.server(t, http.StatusAccepted)

	settings := &fakeSettings{
		notifications: &models.NotificationSettings{
			SlackAlerts:     true,
			SlackWebhookURL: slackSrv.URL,
			WebhookAlerts:   true,
			EmailAlerts:     true,
			MinRiskScore:    70,
		},
		api: &models.ApiSettings{WebhookURL: hookSrv.URL, WebhookSecret: "whsec"},
	}
	svc := NewService(settings, nil, Options{Timeout: 2 * time.Second})

	t.Run("below minimum risk is skipped", func(t *testing.T) {
		out, err := svc.Dispatch(context.Background(), testAlert(40))
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Zero(t, slack.count())
	})

	t.Run("sends to every enabled channel", func(t *testing.T) {
		out, err := svc.Dispatch(context.Background(), testAlert(92))
		require.NoError(t, err)
		require.Len(t, out, 3)

		byChannel := map[string]Delivery{}
		for _, d := range out {
			byChannel[d.Channel] = d
		}
		assert.True(t, byChannel[ChannelSlack].Sent)
		assert.True(t, byChannel[ChannelWebhook].Sent)
		assert.Equal(t, http.StatusAccepted, byChannel[ChannelWebhook].Status)
		assert.False(t, byChannel[ChannelEmail].Sent)

		require.Equal(t, 1, hook.count())
		body := hook.bodies[0]
		assert.Equal(t, "fraud_alert", hook.headers[0].Get(EventHeader))
		assert.True(t, VerifySignature("whsec", body, hook.headers[0].Get(SignatureHeader)))

		var payload struct {
			Event string            `json:"event"`
			Data  models.FraudAlert `json:"data"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "txn_1", payload.Data.TransactionID)

		var msg slackMessage
		require.NoError(t, json.Unmarshal(slack.bodies[0], &msg))
		assert.Contains(t, msg.Text, "critical")
		assert.Equal(t, "#8b0000", msg.Attachments[0].Color)
	})

	t.Run("settings failure", func(t *testing.T) {
		broken := NewService(&fakeSettings{err: errors.New("db down")}, nil, Options{})
		_, err := broken.Dispatch(context.Background(), testAlert(92))
		assert.ErrorContains(t, err, "db down")
	})
}

func TestDispatchReportsHTTPFailure(t *testing.T) {
	hook := &captured{}
	srv := hook.server(t, http.StatusInternalServerError)
	svc := NewService(&fakeSettings{
		notifications: &models.NotificationSettings{WebhookAlerts: true},
		api:           &models.ApiSettings{WebhookURL: srv.URL},
	}, nil, Options{})

	out, err := svc.Dispatch(context.Background(), testAlert(80))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].Sent)
	assert.Equal(t, "unexpected status 500", out[0].Error)
	assert.Empty(t, hook.headers[0].Get(SignatureHeader))
}

func TestQueueMarksReportNotified(t *testing.T) {
	hook := &captured{}
	srv := hook.server(t, http.StatusOK)
	marker := new(MockReportMarker)
	reportID := uuid.New()
	done := make(chan struct{})
	marker.On("MarkNotified", mock.Anything, reportID).Return(nil).Run(func(mock.Arguments) { close(done) })

	svc := NewService(&fakeSettings{
		notifications: &models.NotificationSettings{WebhookAlerts: true},
		api:           &models.ApiSettings{WebhookURL: srv.URL},
	}, marker, Options{QueueSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	require.True(t, svc.Enqueue(testAlert(95), &reportID))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("report was not marked notified")
	}
	svc.Stop()
	marker.AssertExpectations(t)

	assert.False(t, svc.Enqueue(testAlert(95), nil), "enqueue after stop")
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	svc := NewService(&fakeSettings{}, nil, Options{QueueSize: 1})
	assert.True(t, svc.Enqueue(testAlert(90), nil))
	assert.False(t, svc.Enqueue(testAlert(90), nil))
}
