package callbackdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tronwatch/core/internal/metrics"
	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

// deliver attempts to deliver one job, retrying with backoff up to
// Config.MaxAttempts, and dead-lettering the delivery on exhaustion or on
// a permanently-classified failure (spec.md §4.6, §4.7).
func (d *dispatcher) deliver(ctx context.Context, j job) {
	payload := Payload{
		EventID:     uuid.New(),
		Network:     j.network,
		Kind:        j.tx.Kind(),
		Transaction: j.tx,
		DeliveredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error(ctx, "failed to marshal callback payload", "callback.subscription_id", j.sub.ID, "error", err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		status, err := d.attempt(ctx, j.sub, payload, body)
		if err == nil && status >= 200 && status < 300 {
			d.recordSuccess(ctx, j.sub)
			metrics.CallbackDeliveries.WithLabelValues("success").Inc()
			return
		}

		if err == nil {
			lastErr = fmt.Errorf("upstream returned status %d", status)
			if isPermanentFailure(status) {
				d.recordFailure(ctx, j.sub, isAutoDisableStatus(status))
				d.deadLetter(ctx, j, body, lastErr.Error(), attempt, true)
				metrics.CallbackDeliveries.WithLabelValues("dead_letter").Inc()
				return
			}
		} else {
			lastErr = err
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}

		if !sleep(ctx, delay(d.cfg.BaseDelay, d.cfg.CapDelay, attempt)) {
			return
		}
	}

	d.recordFailure(ctx, j.sub, false)
	d.deadLetter(ctx, j, body, lastErr.Error(), d.cfg.MaxAttempts, false)
	metrics.CallbackDeliveries.WithLabelValues("dead_letter").Inc()
}

// attempt performs a single signed HTTP POST and returns the response
// status code (or an error if the request itself could not be completed).
func (d *dispatcher) attempt(ctx context.Context, sub store.CallbackSubscription, payload Payload, body []byte) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sign(sub.Secret, body))
	req.Header.Set("X-Webhook-Subscription-Id", sub.ID.String())
	req.Header.Set("X-Webhook-Timestamp", payload.DeliveredAt.Format(time.RFC3339))
	req.Header.Set("X-Webhook-Event", string(payload.Kind))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func (d *dispatcher) recordSuccess(ctx context.Context, sub store.CallbackSubscription) {
	sub.SuccessCount++
	now := time.Now().UTC()
	sub.LastTriggeredAt = &now
	if err := d.store.UpdateSubscription(ctx, sub); err != nil {
		logger.Warn(ctx, "failed to record callback success", "callback.subscription_id", sub.ID, "error", err)
	}
}

func (d *dispatcher) recordFailure(ctx context.Context, sub store.CallbackSubscription, autoDisable bool) {
	sub.FailureCount++
	if autoDisable && d.cfg.AutoDisableOn404410 {
		sub.Enabled = false
		logger.Warn(ctx, "auto-disabling subscription after unrecoverable endpoint failure", "callback.subscription_id", sub.ID)
	}
	if err := d.store.UpdateSubscription(ctx, sub); err != nil {
		logger.Warn(ctx, "failed to record callback failure", "callback.subscription_id", sub.ID, "error", err)
	}
}

func (d *dispatcher) deadLetter(ctx context.Context, j job, body []byte, lastErr string, attempts int, permanent bool) {
	entry := store.DeadLetterEntry{
		ID:             uuid.New(),
		SubscriptionID: j.sub.ID,
		TxHash:         j.tx.Hash,
		Payload:        body,
		LastError:      lastErr,
		Attempts:       attempts,
		Permanent:      permanent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := d.store.SaveDeadLetter(ctx, entry); err != nil {
		logger.Error(ctx, "failed to persist dead-lettered callback", "callback.subscription_id", j.sub.ID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
