package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/foodtruck-orders/internal/obs"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
	"github.com/noah-isme/foodtruck-orders/internal/resilience"
)

// Doer executes HTTP requests; *resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

var _ Doer = (*resilience.HTTPClient)(nil)

// PushHandler notifies the foodtruck dashboard of new orders through the push provider.
type PushHandler struct {
	Client   Doer
	Endpoint string
	Secret   string
	Now      func() time.Time
}

type pushMessage struct {
	FoodtruckID string `json:"foodtruckId"`
	OrderID     string `json:"orderId"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// ProcessTask implements asynq.Handler. Provider 4xx responses are not retried.
func (h *PushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := DecodePayload(t)
	if err != nil {
		return err
	}
	if h.Client == nil || strings.TrimSpace(h.Endpoint) == "" {
		return nil
	}
	ctx, span := otel.Tracer("notify.Push").Start(ctx, "PushHandler.ProcessTask")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", p.Order.OrderID), attribute.String("foodtruck.id", p.Order.FoodtruckID))

	body, err := json.Marshal(pushMessage{
		FoodtruckID: p.Order.FoodtruckID,
		OrderID:     p.Order.OrderID,
		Title:       "Nouvelle commande",
		Body:        fmt.Sprintf("%s - %s", strings.TrimSpace(p.Order.CustomerName), pricing.FormatMajor(p.Order.TotalCents)),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: build request: %v: %w", err, asynq.SkipRetry)
	}
	ts := h.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", p.EventID)
	if h.Secret != "" {
		req.Header.Set("X-Signature", Sign(h.Secret, ts, p.Order.OrderID, body))
	}

	resp, err := h.Client.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		obs.RecordSideEffect("push", err)
		return fmt.Errorf("push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		err = fmt.Errorf("push: provider responded %d", resp.StatusCode)
		obs.RecordSideEffect("push", err)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	obs.RecordSideEffect("push", nil)
	return nil
}

func (h *PushHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Sign computes HMAC-SHA256 over "<ts>.<orderID>.<body>" with the provider secret.
func Sign(secret string, ts int64, orderID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(orderID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
