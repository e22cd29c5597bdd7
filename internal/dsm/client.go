// Package dsm wraps the Synology DSM webapi: session lifecycle, authenticated
// calls, and the error taxonomy shared by the pollers above it.
package dsm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	authPath  = "/webapi/auth.cgi"
	entryPath = "/webapi/entry.cgi"

	// DSM session name under which the sid is issued.
	sessionName = "Core"
)

// Config holds the appliance connection parameters.
type Config struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	OTPCode  string        `mapstructure:"otp_code"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// MaxCallsPerSecond bounds the aggregate request rate against the
	// appliance across all pollers.
	MaxCallsPerSecond float64 `mapstructure:"max_calls_per_second"`
	CallBurst         int     `mapstructure:"call_burst"`
}

// DefaultConfig returns connection defaults for DSM 7.
func DefaultConfig() Config {
	return Config{
		Port:              5001,
		UseTLS:            true,
		Timeout:           10 * time.Second,
		MaxCallsPerSecond: 8,
		CallBurst:         16,
	}
}

// BaseURL returns the appliance webapi root.
func (c Config) BaseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Client owns the single authenticated session to the appliance and exposes
// Call, the one operation everything above it uses. Safe for concurrent use:
// session refresh is serialized, concurrent callers await the in-flight login
// instead of issuing redundant ones.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        Config
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu      sync.Mutex // guards session
	session *Session

	loginMu sync.Mutex // serializes login; held across the network call
}

// NewClient creates a client for the configured appliance. Self-signed TLS
// certificates are accepted; NAS appliances rarely carry public ones.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxCallsPerSecond <= 0 {
		cfg.MaxCallsPerSecond = DefaultConfig().MaxCallsPerSecond
	}
	if cfg.CallBurst <= 0 {
		cfg.CallBurst = DefaultConfig().CallBurst
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}, //nolint:gosec // G402: appliances use self-signed certs
				DisableKeepAlives: false,
			},
		},
		baseURL: cfg.BaseURL(),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxCallsPerSecond), cfg.CallBurst),
		logger:  logger,
	}
}

// Host returns the configured appliance host, for reachability probes.
func (c *Client) Host() string { return c.cfg.Host }

// EnsureSession returns the live session, logging in lazily if needed.
func (c *Client) EnsureSession(ctx context.Context) (Session, error) {
	if s := c.currentSession(); s != nil {
		return *s, nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	// Another caller may have completed the login while we waited.
	if s := c.currentSession(); s != nil {
		return *s, nil
	}
	return c.login(ctx)
}

// Invalidate drops the current session. The next call re-authenticates lazily.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// Call issues an authenticated webapi request and returns the data payload.
// If the appliance reports an expired session, the session is invalidated,
// re-authenticated once, and the request retried exactly once.
func (c *Client) Call(ctx context.Context, api, method string, version int, params url.Values) (json.RawMessage, error) {
	sess, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.request(ctx, api, method, version, params, sess.ID)
	if !IsAuthExpired(err) {
		return data, err
	}

	c.logger.Info("session expired, re-authenticating",
		zap.String("api", api),
		zap.String("method", method),
	)
	c.invalidateIf(sess.ID)

	sess, err = c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, api, method, version, params, sess.ID)
}

// Logout invalidates the session on the appliance side. Errors are logged,
// not returned: a failed logout leaves nothing for the caller to do.
func (c *Client) Logout(ctx context.Context) {
	s := c.currentSession()
	if s == nil {
		return
	}
	c.Invalidate()

	q := url.Values{}
	q.Set("api", "SYNO.API.Auth")
	q.Set("version", "6")
	q.Set("method", "logout")
	q.Set("session", sessionName)
	q.Set("_sid", s.ID)

	if _, err := c.do(ctx, authPath, q); err != nil {
		c.logger.Debug("logout failed", zap.Error(err))
	}
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// invalidateIf drops the session only if it is still the one that failed,
// so a concurrent re-login is not thrown away.
func (c *Client) invalidateIf(sid string) {
	c.mu.Lock()
	if c.session != nil && c.session.ID == sid {
		c.session = nil
	}
	c.mu.Unlock()
}

// login authenticates against SYNO.API.Auth. Caller must hold loginMu.
func (c *Client) login(ctx context.Context) (Session, error) {
	q := url.Values{}
	q.Set("api", "SYNO.API.Auth")
	q.Set("version", "6")
	q.Set("method", "login")
	q.Set("account", c.cfg.Username)
	q.Set("passwd", c.cfg.Password)
	q.Set("session", sessionName)
	q.Set("format", "sid")
	if c.cfg.OTPCode != "" {
		q.Set("otp_code", c.cfg.OTPCode)
	}

	resp, err := c.do(ctx, authPath, q)
	if err != nil {
		return Session{}, err
	}

	if !resp.Success {
		code := 0
		if resp.Error != nil {
			code = resp.Error.Code
		}
		authErr := &AuthError{Code: code}
		switch code {
		case codeOTPRequired, codeOTPEnforced:
			authErr.NeedsOTP = true
		case codeInvalidCredentials, codeAccountDisabled, codeOTPInvalid:
			authErr.Permanent = true
		}
		c.logger.Warn("login failed", zap.Int("code", code), zap.Bool("needs_otp", authErr.NeedsOTP))
		return Session{}, authErr
	}

	var data loginData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return Session{}, &ParseError{Source: "auth", Err: err}
	}
	if data.SID == "" {
		return Session{}, &ParseError{Source: "auth", Err: errors.New("login response missing sid")}
	}

	sess := Session{ID: data.SID, CreatedAt: time.Now().UTC()}
	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()

	c.logger.Info("authenticated to appliance", zap.String("host", c.cfg.Host))
	return sess, nil
}

// request issues one authenticated data call and maps the response envelope
// to the error taxonomy.
func (c *Client) request(ctx context.Context, api, method string, version int, params url.Values, sid string) (json.RawMessage, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api", api)
	q.Set("method", method)
	q.Set("version", strconv.Itoa(version))
	q.Set("_sid", sid)

	resp, err := c.do(ctx, entryPath, q)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		code := 0
		if resp.Error != nil {
			code = resp.Error.Code
		}
		if isSessionExpiredCode(code) {
			return nil, &AuthError{Code: code, Expired: true}
		}
		return nil, &APIError{API: api, Method: method, Code: code}
	}

	return resp.Data, nil
}

// do performs one HTTP round trip against the webapi and decodes the envelope.
// Transport failures (including timeouts) come back as NetworkError and leave
// the session untouched.
func (c *Client) do(ctx context.Context, path string, query url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Op: "wait for rate limiter", Err: err}
	}

	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "call " + path, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read response", Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &APIError{API: path, Method: "http", Code: httpResp.StatusCode}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ParseError{Source: "envelope", Err: err}
	}
	return &resp, nil
}
