package callbackdispatch

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// Replay re-attempts a single dead-lettered delivery outside the normal
// worker pool, for the operator-driven `dead-letter replay` CLI command
// (spec.md §4.7, SPEC_FULL.md §10 decision 3). It signs the body with the
// same HMAC scheme as a live delivery and sends X-Webhook-Signature and
// X-Webhook-Subscription-Id, plus X-Webhook-Replay: true to mark the replay.
// It does not send X-Webhook-Timestamp or X-Webhook-Event.
func Replay(ctx context.Context, client *http.Client, url, secret, subscriptionID string, body []byte, timeout time.Duration) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sign(secret, body))
	req.Header.Set("X-Webhook-Subscription-Id", subscriptionID)
	req.Header.Set("X-Webhook-Replay", "true")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
