package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	mockTokenTTL      = 30 * time.Minute
	mockAdminUsername = "admin"
	mockAdminPassword = "password123"
)

var errUnsupportedFormat = errors.New("unsupported format")

type mockUser struct {
	id       int
	username string
	role     string
	hash     []byte
}

// MockClient implements Client in memory, emulating the REST backend: seeded
// users, signed tokens, csv/xlsx parsing into the normalized row shape, and
// the last uploaded dataset.
type MockClient struct {
	mu      sync.RWMutex
	secret  []byte
	users   []mockUser
	nextID  int
	dataset insight.Dataset
	alerts  []Alert
	now     func() time.Time
	cost    int
}

var _ Client = (*MockClient)(nil)

// MockOption customizes the mock backend.
type MockOption func(*MockClient)

// WithMockClock overrides the clock used for tokens and default dates.
func WithMockClock(now func() time.Time) MockOption {
	return func(c *MockClient) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMockSecret sets the token signing secret.
func WithMockSecret(secret string) MockOption {
	return func(c *MockClient) {
		if secret != "" {
			c.secret = []byte(secret)
		}
	}
}

// WithMockHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithMockHashCost(cost int) MockOption {
	return func(c *MockClient) {
		c.cost = cost
	}
}

// NewMockClient builds a mock backend seeded with the admin account.
func NewMockClient(opts ...MockOption) (*MockClient, error) {
	c := &MockClient{
		secret: []byte("datainsight-mock-secret"),
		nextID: 1,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.addUser(mockAdminUsername, mockAdminPassword, "admin"); err != nil {
		return nil, err
	}
	return c, nil
}

// Login implements AuthClient.
func (c *MockClient) Login(_ context.Context, username, password string) (LoginResult, error) {
	c.mu.RLock()
	user, ok := c.findByName(username)
	c.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(user.hash, []byte(password)) != nil {
		return LoginResult{}, fmt.Errorf("%w: %w", insight.ErrUnauthorized, reject(opLogin, http.StatusUnauthorized, "Invalid credentials"))
	}
	token, err := c.issue(user.username)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, Role: user.role}, nil
}

// UpdateProfile implements AuthClient.
func (c *MockClient) UpdateProfile(_ context.Context, token string, update ProfileUpdate) (ProfileResult, error) {
	subject, err := c.subject(opProfile, token)
	if err != nil {
		return ProfileResult{}, err
	}
	if update.CurrentPassword == "" {
		return ProfileResult{}, reject(opProfile, http.StatusBadRequest, "Current password is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexByName(subject)
	if idx < 0 {
		return ProfileResult{}, reject(opProfile, http.StatusNotFound, "User not found")
	}
	user := c.users[idx]
	if bcrypt.CompareHashAndPassword(user.hash, []byte(update.CurrentPassword)) != nil {
		return ProfileResult{}, reject(opProfile, http.StatusUnauthorized, "Current password is incorrect")
	}
	if update.NewUsername != "" {
		if other := c.indexByName(update.NewUsername); other >= 0 && other != idx {
			return ProfileResult{}, reject(opProfile, http.StatusBadRequest, "Username is already taken")
		}
		user.username = update.NewUsername
	}
	if update.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(update.NewPassword), c.cost)
		if err != nil {
			return ProfileResult{}, fmt.Errorf("backend: hash password: %w", err)
		}
		user.hash = hash
	}
	c.users[idx] = user

	result := ProfileResult{Message: "Profile updated successfully"}
	if update.NewUsername != "" {
		if result.Token, err = c.issue(user.username); err != nil {
			return ProfileResult{}, err
		}
	}
	return result, nil
}

// ListUsers implements UserClient.
func (c *MockClient) ListUsers(_ context.Context, token string) ([]User, error) {
	if _, err := c.subject(opListUsers, token); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	users := make([]User, len(c.users))
	for i, u := range c.users {
		users[i] = User{ID: u.id, Username: u.username, Role: u.role}
	}
	return users, nil
}

// CreateUser implements UserClient.
func (c *MockClient) CreateUser(_ context.Context, token string, user NewUser) (string, error) {
	if _, err := c.subject(opCreateUser, token); err != nil {
		return "", err
	}
	if strings.TrimSpace(user.Username) == "" || user.Password == "" {
		return "", reject(opCreateUser, http.StatusBadRequest, "Username and password are required")
	}
	role := user.Role
	if role == "" {
		role = "user"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexByName(user.Username) >= 0 {
		return "", reject(opCreateUser, http.StatusBadRequest, "User already exists")
	}
	if err := c.addUserLocked(user.Username, user.Password, role); err != nil {
		return "", err
	}
	return "User created successfully", nil
}

// DeleteUser implements UserClient. The main admin account cannot be deleted.
func (c *MockClient) DeleteUser(_ context.Context, token string, id int) (string, error) {
	if _, err := c.subject(opDeleteUser, token); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, u := range c.users {
		if u.id != id {
			continue
		}
		if u.username == mockAdminUsername {
			return "", reject(opDeleteUser, http.StatusBadRequest, "The main admin cannot be deleted")
		}
		c.users = append(c.users[:i], c.users[i+1:]...)
		return "User deleted", nil
	}
	return "", reject(opDeleteUser, http.StatusNotFound, "User not found")
}

// SendAlert implements AlertClient. Alerts are recorded, never delivered.
func (c *MockClient) SendAlert(ctx context.Context, _ string, alert Alert) (string, error) {
	if alert.Recipient == "" || alert.Subject == "" || alert.Message == "" {
		return "", reject(opSendAlert, http.StatusBadRequest, "Missing required fields")
	}
	c.mu.Lock()
	c.alerts = append(c.alerts, alert)
	c.mu.Unlock()
	logging.Ctx(ctx).Info().
		Str("recipient", alert.Recipient).
		Str("subject", alert.Subject).
		Msg("simulated alert delivery")
	return "Alert sent (simulation). Configure SMTP for real delivery.", nil
}

// Alerts returns the alerts recorded so far.
func (c *MockClient) Alerts() []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Alert(nil), c.alerts...)
}

// Upload implements DataClient. The uploader's role decides row visibility.
func (c *MockClient) Upload(ctx context.Context, token string, upload Upload) (UploadResult, error) {
	if upload.Body == nil {
		return UploadResult{}, reject(opUpload, http.StatusBadRequest, "No file part")
	}
	if strings.TrimSpace(upload.FileName) == "" {
		return UploadResult{}, reject(opUpload, http.StatusBadRequest, "No selected file")
	}
	counter := &progressReader{r: upload.Body, report: upload.Progress}
	header, records, err := readSheet(upload.FileName, counter)
	if errors.Is(err, errUnsupportedFormat) {
		return UploadResult{}, reject(opUpload, http.StatusBadRequest, "Unsupported format")
	}
	if err != nil {
		return UploadResult{}, reject(opUpload, http.StatusInternalServerError, "Error: "+err.Error())
	}
	if err := ctx.Err(); err != nil {
		return UploadResult{}, fmt.Errorf("backend: %s: %w", opUpload, err)
	}

	visibility := "public"
	if c.roleOf(token) == "admin" {
		visibility = "admin"
	}
	rows := normalizeRows(header, records, visibility, c.now())
	ds := insight.NewDataset(NormalizedColumns, rows)

	c.mu.Lock()
	c.dataset = ds
	c.mu.Unlock()
	return UploadResult{
		Message: fmt.Sprintf("Data uploaded successfully (Visibility: %s)", visibility),
		Dataset: ds.Clone(),
	}, nil
}

// FetchData implements DataClient.
func (c *MockClient) FetchData(context.Context, string) (insight.Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dataset.Empty() {
		return insight.Dataset{}, nil
	}
	return c.dataset.Clone(), nil
}

func (c *MockClient) addUser(username, password, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addUserLocked(username, password, role)
}

func (c *MockClient) addUserLocked(username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return fmt.Errorf("backend: hash password: %w", err)
	}
	c.users = append(c.users, mockUser{id: c.nextID, username: username, role: role, hash: hash})
	c.nextID++
	return nil
}

func (c *MockClient) findByName(username string) (mockUser, bool) {
	if i := c.indexByName(username); i >= 0 {
		return c.users[i], true
	}
	return mockUser{}, false
}

func (c *MockClient) indexByName(username string) int {
	for i, u := range c.users {
		if u.username == username {
			return i
		}
	}
	return -1
}

func (c *MockClient) issue(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"exp": c.now().Add(mockTokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("backend: sign token: %w", err)
	}
	return token, nil
}

// subject verifies token and returns its subject.
func (c *MockClient) subject(op, token string) (string, error) {
	if token == "" {
		return "", reject(op, http.StatusUnauthorized, "Token not provided")
	}
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", reject(op, http.StatusUnauthorized, "Token expired")
		}
		return "", reject(op, http.StatusUnauthorized, "Invalid token")
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", reject(op, http.StatusUnauthorized, "Invalid token")
	}
	return sub, nil
}

func (c *MockClient) roleOf(token string) string {
	sub, err := c.subject(opUpload, token)
	if err != nil {
		return "user"
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if u, ok := c.findByName(sub); ok {
		return u.role
	}
	return "user"
}

func reject(op string, status int, detail string) *APIError {
	return &APIError{Operation: op, Status: status, Detail: detail}
}
