package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storeops/internal/config"
)

const defaultWebhookTimeout = 5 * time.Second

type WebhookSink struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewWebhookSink(hook config.WebhookConfig) *WebhookSink {
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	return &WebhookSink{
		URL:    strings.TrimSpace(hook.URL),
		Secret: hook.Secret,
		Client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookSink) Name() string { return "webhook " + w.URL }

// Deliver POSTs the envelope; any non-2xx response is a failure.
func (w *WebhookSink) Deliver(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Storeops-Event", env.Type)
	req.Header.Set("X-Storeops-Delivery", fmt.Sprintf("%d", env.ID))
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Storeops-Secret", w.Secret)
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
