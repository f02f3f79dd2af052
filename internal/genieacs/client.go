package genieacs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/metrics"
)

// DefaultNBIPort is the GenieACS northbound API port. 7547 is the CWMP
// port and answers API calls with 405.
const DefaultNBIPort = 7557

// ErrorKind classifies ACS failures for operators.
type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindCWMPPort   ErrorKind = "cwmp_port"
	KindHTTP       ErrorKind = "http_error"
	KindException  ErrorKind = "exception"
)

// Error is the structured last error of an ACS call.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("genieacs %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("genieacs %s: %s", e.Kind, e.Message)
}

// AsError extracts the structured ACS error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrNotConfigured   = errors.New("genieacs is not configured for this tenant")
	ErrNothingToChange = errors.New("no wifi parameter supplied")
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	NBIPort  int
}

type Client struct {
	nbiURL   string
	username string
	password string
	http     *http.Client
	logger   logging.Logger
}

// New returns a client bound to one tenant's ACS. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	nbi, err := deriveNBIURL(cfg.BaseURL, cfg.NBIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to derive NBI url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		nbiURL:   nbi,
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
		logger:   logging.OrDiscard(logger),
	}, nil
}

// NBIURL returns the API base the client talks to.
func (c *Client) NBIURL() string { return c.nbiURL }

func deriveNBIURL(configured string, port int) (string, error) {
	raw := strings.TrimSpace(configured)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", errors.New("missing host")
	}
	if port <= 0 {
		port = DefaultNBIPort
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(u.Hostname(), strconv.Itoa(port)), nil
}

// queryDevices runs GET /devices/ with the given query and extra params.
func (c *Client) queryDevices(ctx context.Context, timeout time.Duration, query map[string]any, params url.Values) ([]map[string]any, error) {
	qb, _ := json.Marshal(query)
	if params == nil {
		params = url.Values{}
	}
	params.Set("query", string(qb))
	u := c.nbiURL + "/devices/?" + params.Encode()

	body, err := c.do(ctx, timeout, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var devices []map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&devices); err != nil {
		return nil, &Error{Kind: KindException, Message: "invalid device list: " + err.Error()}
	}
	return devices, nil
}

// getDevice fetches one device by id with a projection; an empty result
// is reported as an http_error.
func (c *Client) getDevice(ctx context.Context, timeout time.Duration, deviceID, projection string) (map[string]any, error) {
	params := url.Values{}
	if projection != "" {
		params.Set("projection", projection)
	}
	devices, err := c.queryDevices(ctx, timeout, map[string]any{"_id": deviceID}, params)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, &Error{Kind: KindHTTP, Message: "device not found", StatusCode: http.StatusOK}
	}
	return devices[0], nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, u string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rbody io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		rbody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rbody)
	if err != nil {
		return nil, &Error{Kind: KindException, Message: err.Error()}
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.WithFields(logging.Fields{"upstream": "genieacs", "method": method, "nbi": c.nbiURL})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream("genieacs", string(KindConnection), start)
		log.WithError(err).Error("acs connection failed")
		return nil, &Error{Kind: KindConnection, Message: "não foi possível conectar ao GenieACS em " + c.nbiURL}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed:
		metrics.ObserveUpstream("genieacs", string(KindCWMPPort), start)
		log.Error("acs answered 405; the configured port is the CWMP port, not the API port")
		return nil, &Error{Kind: KindCWMPPort, Message: "porta TR-069 (CWMP) não é a API do GenieACS", StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		metrics.ObserveUpstream("genieacs", string(KindHTTP), start)
		log.WithFields(logging.Fields{"status": resp.StatusCode, "body": clip(string(b), 300)}).Error("acs request failed")
		return nil, &Error{Kind: KindHTTP, Message: fmt.Sprintf("GenieACS respondeu %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}
	metrics.ObserveUpstream("genieacs", "ok", start)
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("acs request done")
	return b, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
