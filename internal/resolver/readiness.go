package resolver

import (
	"context"
	"fmt"
	"net/http"
)

const statusFail = "fail"

// ReadinessChecker — проверка доступности Records API через его health endpoint.
type ReadinessChecker struct {
	healthURL string
	client    *http.Client
}

// NewReadinessChecker создаёт checker на базе HTTP-клиента resolver без SA-токена
// (тот же таймаут и пул доверия TLS).
func (c *Client) NewReadinessChecker(healthPath string) *ReadinessChecker {
	return &ReadinessChecker{
		healthURL: c.apiURL + healthPath,
		client:    c.plain,
	}
}

// CheckReady возвращает "ok" при ответе 2xx.
func (r *ReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, r.healthURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := r.client.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("Records API недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusFail, fmt.Sprintf("Records API вернул статус %d", resp.StatusCode)
	}
	return "ok", "Records API доступен"
}
