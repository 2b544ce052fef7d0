package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jwalitptl/scheduler-api/pkg/circuitbreaker"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

const webhookTimeout = 5 * time.Second

// WebhookNotifier posts short text notifications to per-patient webhook
// URLs. A flapping endpoint trips the breaker instead of tying up
// handler goroutines on a dead host.
type WebhookNotifier struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewWebhookNotifier(m *metrics.Metrics) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: webhookTimeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "webhook",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		metrics: m,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, url, text string) error {
	err := n.breaker.Execute(func() error {
		return n.post(ctx, url, text)
	})
	if err != nil {
		n.metrics.DeliveryAttempts.WithLabelValues("webhook", "failure").Inc()
		return err
	}
	n.metrics.DeliveryAttempts.WithLabelValues("webhook", "success").Inc()
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, url, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
