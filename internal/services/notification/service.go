// Package notification delivers fraud alerts to the channels enabled in the
// notification settings.
package notification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"securecart/internal/models"
)

// Channels
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelSlack   = "slack"
	ChannelWebhook = "webhook"
)

const (
	SignatureHeader = "X-SecureCart-Signature"
	EventHeader     = "X-SecureCart-Event"

	defaultQueueSize = 128
	defaultTimeout   = 5 * time.Second
)

// SettingsSource supplies the current channel configuration.
type SettingsSource interface {
	Notifications(ctx context.Context) (*models.NotificationSettings, error)
	API(ctx context.Context) (*models.ApiSettings, error)
}

// ReportMarker flags a fraud report once an alert went out.
type ReportMarker interface {
	MarkNotified(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	QueueSize int
	Timeout   time.Duration
	Workers   int
}

// Delivery is the outcome for one channel.
type Delivery struct {
	Channel string `json:"channel"`
	Sent    bool   `json:"sent"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

type job struct {
	alert    models.FraudAlert
	reportID *uuid.UUID
}

type Service struct {
	settings SettingsSource
	reports  ReportMarker
	client   *fasthttp.Client
	timeout  time.Duration
	workers  int
	queue    chan job
	wg       sync.WaitGroup
	once     sync.Once
}

func NewService(settings SettingsSource, reports ReportMarker, opts Options) *Service {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Service{
		settings: settings,
		reports:  reports,
		client: &fasthttp.Client{
			Name:            "SecureCart-Notifier",
			ReadTimeout:     opts.Timeout,
			WriteTimeout:    opts.Timeout,
			MaxConnsPerHost: 16,
		},
		timeout: opts.Timeout,
		workers: opts.Workers,
		queue:   make(chan job, opts.QueueSize),
	}
}

// Start runs the delivery workers until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-s.queue:
					if !ok {
						return
					}
					s.deliver(ctx, j)
				}
			}
		}()
	}
}

// Stop drains nothing further and waits for in-flight deliveries.
func (s *Service) Stop() {
	s.once.Do(func() { close(s.queue) })
	s.wg.Wait()
}

// Enqueue schedules an alert without blocking. It reports false when the
// queue is full and the alert was dropped.
func (s *Service) Enqueue(alert models.FraudAlert, reportID *uuid.UUID) (queued bool) {
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()
	select {
	case s.queue <- job{alert: alert, reportID: reportID}:
		return true
	default:
		log.Printf("⚠️ Notification queue full, dropping alert %s", alert.ID)
		return false
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	results, err := s.Dispatch(ctx, j.alert)
	if err != nil {
		log.Printf("❌ Alert %s not delivered: %v", j.alert.ID, err)
		return
	}
	sent := false
	for _, r := range results {
		if r.Sent {
			sent = true
		} else if r.Error != "" {
			log.Printf("⚠️ Alert %s via %s failed: %s", j.alert.ID, r.Channel, r.Error)
		}
	}
	if sent && j.reportID != nil && s.reports != nil {
		if err := s.reports.MarkNotified(ctx, *j.reportID); err != nil {
			log.Printf("⚠️ Failed to mark report %s notified: %v", j.reportID, err)
		}
	}
}

// Dispatch sends alert to every enabled channel synchronously. Alerts below
// the configured minimum risk score are skipped.
func (s *Service) Dispatch(ctx context.Context, alert models.FraudAlert) ([]Delivery, error) {
	ns, err := s.settings.Notifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notification settings: %w", err)
	}
	if alert.RiskScore < ns.MinRiskScore {
		return nil, nil
	}

	var out []Delivery
	if ns.SlackAlerts && ns.SlackWebhookURL != "" {
		out = append(out, s.sendSlack(ns.SlackWebhookURL, alert))
	}
	if ns.WebhookAlerts {
		api, err := s.settings.API(ctx)
		if err != nil {
			out = append(out, Delivery{Channel: ChannelWebhook, Error: err.Error()})
		} else if api.WebhookURL != "" {
			out = append(out, s.sendWebhook(api.WebhookURL, api.WebhookSecret, "fraud_alert", alert))
		}
	}
	if ns.EmailAlerts {
		log.Printf("📧 Email channel not configured, alert %s for %s logged only", alert.ID, ns.AlertEmail)
		out = append(out, Delivery{Channel: ChannelEmail, Error: "channel not configured"})
	}
	if ns.SMSAlerts {
		log.Printf("📱 SMS channel not configured, alert %s for %s logged only", alert.ID, ns.AlertPhone)
		out = append(out, Delivery{Channel: ChannelSMS, Error: "channel not configured"})
	}
	return out, nil
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

var levelColors = map[string]string{
	models.AlertCritical: "#8b0000",
	models.AlertHigh:     "#d9534f",
	models.AlertMedium:   "#f0ad4e",
	models.AlertLow:      "#5bc0de",
}

func (s *Service) sendSlack(url string, a models.FraudAlert) Delivery {
	msg := slackMessage{
		Text: fmt.Sprintf(":rotating_light: %s fraud alert for transaction %s", a.AlertLevel, a.TransactionID),
		Attachments: []slackAttachment{{
			Color: levelColors[a.AlertLevel],
			Fields: []slackField{
				{Title: "Amount", Value: fmt.Sprintf("%.2f", a.Amount), Short: true},
				{Title: "Risk score", Value: fmt.Sprintf("%d", a.RiskScore), Short: true},
				{Title: "Merchant", Value: a.MerchantName, Short: true},
				{Title: "Location", Value: strings.TrimLeft(a.Location.City+", "+a.Location.Country, ", "), Short: true},
			},
		}},
	}
	body, _ := json.Marshal(msg)
	return s.post(ChannelSlack, url, body, nil)
}

func (s *Service) sendWebhook(url, secret, event string, payload any) Delivery {
	body, err := json.Marshal(map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC(),
		"data":      payload,
	})
	if err != nil {
		return Delivery{Channel: ChannelWebhook, Error: err.Error()}
	}
	headers := map[string]string{EventHeader: event}
	if secret != "" {
		headers[SignatureHeader] = Sign(secret, body)
	}
	return s.post(ChannelWebhook, url, body, headers)
}

// SendSlackText posts a plain message, used for operational alerts.
func (s *Service) SendSlackText(url, text string) Delivery {
	body, _ := json.Marshal(slackMessage{Text: text})
	return s.post(ChannelSlack, url, body, nil)
}

// SendTest posts a signed test event to url.
func (s *Service) SendTest(url, secret string) Delivery {
	return s.sendWebhook(url, secret, "test", map[string]string{"message": "SecureCart webhook test"})
}

func (s *Service) post(channel, url string, body []byte, headers map[string]string) Delivery {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	d := Delivery{Channel: channel}
	if err := s.client.DoTimeout(req, resp, s.timeout); err != nil {
		d.Error = err.Error()
		return d
	}
	d.Status = resp.StatusCode()
	if d.Status >= 300 {
		d.Error = fmt.Sprintf("unexpected status %d", d.Status)
		return d
	}
	d.Sent = true
	return d
}

// Sign returns the webhook signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
