package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/zhouzirui/happymac/backend/internal/model/speech"
)

// ErrMissingCredentials is returned when AppID or the access token is absent.
var ErrMissingCredentials = errors.New("volcengine speech config is missing AppID or AccessToken")

// resolveCredentials returns the normalized AppID and access token.
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", ErrMissingCredentials
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}
	if appID == "" || token == "" {
		return "", "", ErrMissingCredentials
	}
	return appID, token, nil
}

// endpoint joins path onto the configured base URL, or onto def's host when
// no override is set.
func endpoint(cfg *speechmodel.SpeechConfig, def, path string) string {
	if cfg != nil {
		if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
			return base + path
		}
	}
	return def + path
}
