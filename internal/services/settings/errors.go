package settings

import "errors"

var (
	ErrNoAPIKey      = errors.New("no API key has been issued")
	ErrNilSettings   = errors.New("settings payload is required")
	ErrSettingsStore = errors.New("settings store unavailable")
)
