package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/config"
	"github.com/camarohq/hunter/internal/model"
)

// WebhookNotifier POSTs the digest as JSON.
type WebhookNotifier struct {
	cfg      config.WebhookConfig
	composer Composer
	client   *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier with a 10s client timeout.
func NewWebhookNotifier(cfg config.WebhookConfig, composer Composer) *WebhookNotifier {
	return &WebhookNotifier{
		cfg:      cfg,
		composer: composer,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Notifier.
func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, listings []model.Listing) error {
	if w.cfg.URL == "" || len(listings) == 0 {
		return nil
	}

	digest, err := w.composer.Compose(listings)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(digest)
	if err != nil {
		return eris.Wrap(err, "notify: marshal digest")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
