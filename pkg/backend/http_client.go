package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/internal/logging"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker/v2"
)

// DefaultTimeout covers a cold start of a sleeping backend.
const DefaultTimeout = 90 * time.Second

const (
	opLogin       = "login"
	opProfile     = "update_profile"
	opListUsers   = "list_users"
	opCreateUser  = "create_user"
	opDeleteUser  = "delete_user"
	opUpload      = "upload"
	opFetchData   = "fetch_data"
	opSendAlert   = "send_alert"
	outcomeOK     = "ok"
	outcomeRemote = "rejected"
	outcomeNet    = "network"
)

// BreakerConfig controls the circuit breaker around the transport.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTPConfig configures the HTTP backend client.
type HTTPConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    BreakerConfig
	Observer   Observer
}

// HTTPClient talks to the DataInsight REST backend.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	observer Observer
	schema   *jsonschema.Schema
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("backend: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	schema, err := compileUploadSchema()
	if err != nil {
		return nil, err
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   httpClient,
		breaker:  newBreaker(cfg.Breaker),
		observer: observer,
		schema:   schema,
	}, nil
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger := logging.Logger()
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("backend circuit breaker state changed")
		},
	})
}

// Login implements AuthClient. A 401 is reported as insight.ErrUnauthorized.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, opLogin, http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return LoginResult{}, fmt.Errorf("%w: %w", insight.ErrUnauthorized, err)
		}
		return LoginResult{}, err
	}
	if resp.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("backend: login response has no access_token")
	}
	return LoginResult{Token: resp.AccessToken, Role: resp.Role}, nil
}

// UpdateProfile implements AuthClient.
func (c *HTTPClient) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (ProfileResult, error) {
	req := profileRequest{
		CurrentPassword: update.CurrentPassword,
		NewUsername:     update.NewUsername,
		NewPassword:     update.NewPassword,
	}
	var resp profileResponse
	if err := c.do(ctx, opProfile, http.MethodPut, "/auth/profile", token, req, &resp); err != nil {
		return ProfileResult{}, err
	}
	return ProfileResult{Message: resp.Message, Token: resp.AccessToken}, nil
}

// ListUsers implements UserClient.
func (c *HTTPClient) ListUsers(ctx context.Context, token string) ([]User, error) {
	var users []User
	if err := c.do(ctx, opListUsers, http.MethodGet, "/auth/users", token, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser implements UserClient.
func (c *HTTPClient) CreateUser(ctx context.Context, token string, user NewUser) (string, error) {
	req := createUserRequest{Username: user.Username, Password: user.Password, Role: user.Role}
	var resp messageResponse
	if err := c.do(ctx, opCreateUser, http.MethodPost, "/auth/users", token, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// DeleteUser implements UserClient.
func (c *HTTPClient) DeleteUser(ctx context.Context, token string, id int) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, opDeleteUser, http.MethodDelete, "/auth/users/"+strconv.Itoa(id), token, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SendAlert implements AlertClient.
func (c *HTTPClient) SendAlert(ctx context.Context, token string, alert Alert) (string, error) {
	req := alertRequest{Recipient: alert.Recipient, Subject: alert.Subject, Message: alert.Message}
	var resp messageResponse
	if err := c.do(ctx, opSendAlert, http.MethodPost, "/alerts/send", token, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// FetchData implements DataClient.
func (c *HTTPClient) FetchData(ctx context.Context, token string) (insight.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/data", nil)
	if err != nil {
		return insight.Dataset{}, fmt.Errorf("backend: build request: %w", err)
	}
	data, err := c.send(opFetchData, req, token)
	if err != nil {
		return insight.Dataset{}, err
	}
	return decodeDataset(data)
}

// Upload implements DataClient. The file is sent as the multipart field "file".
func (c *HTTPClient) Upload(ctx context.Context, token string, upload Upload) (UploadResult, error) {
	if upload.Body == nil {
		return UploadResult{}, fmt.Errorf("%w: no file selected", insight.ErrValidation)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(upload.FileName))
	if err != nil {
		return UploadResult{}, fmt.Errorf("backend: build upload: %w", err)
	}
	if _, err := io.Copy(part, upload.Body); err != nil {
		return UploadResult{}, fmt.Errorf("backend: read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("backend: build upload: %w", err)
	}

	total := int64(buf.Len())
	body := &progressReader{r: &buf, total: total, report: upload.Progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("backend: build request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.send(opUpload, req, token)
	if err != nil {
		return UploadResult{}, err
	}
	return decodeUpload(c.schema, data)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path, token string, payload any, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("backend: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	data, err := c.send(op, req, token)
	if err != nil {
		return err
	}
	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("backend: decode %s response: %w", op, err)
	}
	return nil
}

// send runs req through the circuit breaker and returns the response body of
// a 2xx answer. Transport failures wrap insight.ErrBackendUnavailable.
func (c *HTTPClient) send(op string, req *http.Request, token string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(req)
	})
	if err != nil {
		c.observer.ObserveRequest(op, outcomeNet, time.Since(start))
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("backend: %s: %w", op, err)
		}
		return nil, fmt.Errorf("backend: %s: %w: %w", op, insight.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.observer.ObserveRequest(op, outcomeRemote, time.Since(start))
		return nil, decodeAPIError(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observer.ObserveRequest(op, outcomeNet, time.Since(start))
		return nil, fmt.Errorf("backend: %s: read response: %w: %w", op, insight.ErrBackendUnavailable, err)
	}
	c.observer.ObserveRequest(op, outcomeOK, time.Since(start))
	return data, nil
}

// progressReader reports cumulative bytes read from r.
type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.report != nil {
			p.report(p.sent, p.total)
		}
	}
	return n, err
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

type profileRequest struct {
	CurrentPassword string `json:"current_password"`
	NewUsername     string `json:"new_username,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
}

type profileResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type alertRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}
