package monitor

import (
	"errors"

	"securecart/internal/services/notification"
)

// SlackAlerter posts operational alerts to a fixed Slack webhook.
type SlackAlerter struct {
	Notifier *notification.Service
	URL      string
}

func (a SlackAlerter) Alert(text string) error {
	if a.Notifier == nil || a.URL == "" {
		return nil
	}
	d := a.Notifier.SendSlackText(a.URL, text)
	if !d.Sent {
		return errors.New(d.Error)
	}
	return nil
}
