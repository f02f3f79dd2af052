package sgp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/metrics"
	"isp-agent-service/internal/models"
)

const defaultAppName = "ai_assistant"

// Client talks to a tenant's SGP billing API. Every method returns nil on
// failure: absence of data is the error signal, and the cause is logged.
type Client struct {
	HTTP   *http.Client
	Logger logging.Logger
}

func New(timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{HTTP: &http.Client{Timeout: timeout}, Logger: logging.OrDiscard(logger)}
}

func buildURL(base, endpoint string) string {
	b := strings.TrimRight(strings.TrimSpace(base), "/")
	if b == "" {
		return ""
	}
	return b + "/" + strings.TrimLeft(endpoint, "/")
}

func appName(t models.Tenant) string {
	if s := strings.TrimSpace(t.SGPAppName); s != "" {
		return s
	}
	return defaultAppName
}

// Call issues one request. Tenant credentials are written after the caller's
// extra fields so they can never be overridden.
func (c *Client) Call(ctx context.Context, tenant models.Tenant, cpf, endpoint string, extra map[string]string, method string) map[string]any {
	form := url.Values{}
	for k, v := range extra {
		form.Set(k, v)
	}
	form.Set("token", tenant.SGPToken)
	form.Set("app", appName(tenant))
	form.Set("cpfcnpj", cpf)
	return c.do(ctx, tenant, endpoint, form, method)
}

func (c *Client) do(ctx context.Context, tenant models.Tenant, endpoint string, form url.Values, method string) map[string]any {
	log := logging.OrDiscard(c.Logger).WithFields(logging.Fields{"upstream": "sgp", "tenant_id": tenant.ID, "endpoint": endpoint})

	u := buildURL(tenant.SGPURL, endpoint)
	if u == "" {
		log.Warn("tenant has no billing URL configured")
		metrics.UpstreamRequests.WithLabelValues("sgp", "not_configured").Inc()
		return nil
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+form.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, bytes.NewBufferString(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		log.WithError(err).Warn("failed to build billing request")
		return nil
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		metrics.ObserveUpstream("sgp", "transport_error", start)
		log.WithError(err).Warn("billing request failed")
		return nil
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil || out == nil {
		metrics.ObserveUpstream("sgp", "invalid_body", start)
		log.WithFields(logging.Fields{"status": resp.StatusCode, "bytes": len(b)}).Warn("billing response is not a JSON object")
		return nil
	}
	metrics.ObserveUpstream("sgp", "ok", start)
	log.WithFields(logging.Fields{"status": resp.StatusCode, "duration_ms": time.Since(start).Milliseconds()}).Debug("billing request done")
	return out
}
