package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// HTTPMerchantNotifier реализует domain.MerchantNotifier.
// Уведомление отправляется с повторами, но остается best-effort:
// вызывающая сторона логирует ошибку и не откатывает расчет.
type HTTPMerchantNotifier struct {
	notifyURL  string
	httpClient *retryablehttp.Client
}

// NewMerchantNotifier создает новый HTTPMerchantNotifier
func NewMerchantNotifier(notifyURL string) *HTTPMerchantNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &HTTPMerchantNotifier{
		notifyURL:  notifyURL,
		httpClient: client,
	}
}

type payoutNotice struct {
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
}

// NotifyPayout сообщает продавцу о зачислении его доли по заказу
func (c *HTTPMerchantNotifier) NotifyPayout(ctx context.Context, orderNumber string, amount decimal.Decimal) error {
	if c.notifyURL == "" {
		return nil
	}

	body, err := json.Marshal(payoutNotice{OrderNumber: orderNumber, Amount: amount})
	if err != nil {
		return fmt.Errorf("merchant notifier: failed to marshal notice for order %s: %w", orderNumber, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.notifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("merchant notifier: failed to create request for order %s: %w", orderNumber, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("merchant notifier: failed to deliver notice for order %s: %w", orderNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("merchant notifier: unexpected status code %d for order %s", resp.StatusCode, orderNumber)
	}

	return nil
}
