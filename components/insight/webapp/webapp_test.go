package webapp

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
)

const salesCSV = "Order ID,Product,Amount,Profit,Date,Region\n" +
	"A-1,Laptop,1200,200,2024-01-15,North\n" +
	"A-2,Mouse,25,5,2024-02-01,South\n"

type stubRenderer struct {
	name string
	data map[string]any
}

func (r *stubRenderer) Render(name string, data any, _ ...io.Writer) (string, error) {
	r.name = name
	r.data, _ = data.(map[string]any)
	return "<html>" + name + "</html>", nil
}

type harness struct {
	app      *fiber.App
	server   *Server
	renderer *stubRenderer
	backend  *backend.MockClient
	hub      *insight.ProgressHub
	cookie   string
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	client, err := backend.NewMockClient(backend.WithMockHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	h := &harness{
		app:      fiber.New(fiber.Config{ErrorHandler: ErrorHandler}),
		renderer: &stubRenderer{},
		backend:  client,
		hub:      insight.NewProgressHub(),
	}
	cfg := Config{
		Sessions:   session.NewMemoryStore(time.Hour),
		Backend:    client,
		Controller: insight.NewController(insight.Options{}),
		Renderer:   h.renderer,
		Hub:        h.hub,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "datainsight_events_total 1\n")
		}),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	h.server, err = Register(h.app, cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) send(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	if h.cookie != "" {
		req.Header.Set("Cookie", defaultCookieName+"="+h.cookie)
	}
	resp, err := h.app.Test(req, 5000)
	require.NoError(t, err)
	for _, c := range resp.Cookies() {
		if c.Name == defaultCookieName {
			h.cookie = c.Value
		}
	}
	return resp
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	return h.send(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) post(t *testing.T, path string, form url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.send(t, req)
}

func (h *harness) login(t *testing.T, username, password string) {
	t.Helper()
	resp := h.post(t, "/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, insight.HomePath, resp.Header.Get("Location"))
}

func (h *harness) upload(t *testing.T, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("upload_id", "up-1"))
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/files/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.send(t, req)
}

func (h *harness) view(t *testing.T) insight.DashboardView {
	t.Helper()
	resp := h.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view, ok := h.renderer.data["view"].(insight.DashboardView)
	require.True(t, ok)
	return view
}

func TestRegisterValidatesConfig(t *testing.T) {
	_, err := Register(fiber.New(), Config{})
	assert.Error(t, err)
	_, err = Register(nil, Config{})
	assert.Error(t, err)
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/", "/dashboard", "/reports", "/api/view"} {
		resp := h.get(t, path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, insight.LoginPath, resp.Header.Get("Location"), path)
	}
	resp := h.get(t, "/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "login.html", h.renderer.name)
}

func TestOpenRoutesSkipSession(t *testing.T) {
	h := newHarness(t)
	resp := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	resp = h.get(t, "/static/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, h.cookie)
}

func TestMetricsNeedAdminOrToken(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.MetricsToken = "scrape-secret" })

	resp := h.get(t, "/metrics")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Cookies(), "rejected scrapes do not open sessions")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp = h.send(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-secret")
	resp = h.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "datainsight_events_total")

	h.login(t, "admin", "password123")
	resp = h.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.post(t, "/users", url.Values{"username": {"ana"}, "password": {"pw"}, "role": {"user"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	h.post(t, "/logout", nil)
	h.login(t, "ana", "pw")
	resp = h.get(t, "/metrics")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFailureRendersInlineError(t *testing.T) {
	h := newHarness(t)
	resp := h.post(t, "/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "login.html", h.renderer.name)
	assert.Equal(t, "Invalid credentials", h.renderer.data["error"])
	assert.Equal(t, "admin", h.renderer.data["username"])
}

func TestLoginThenLoginPageRedirectsHome(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")

	resp := h.get(t, "/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, insight.HomePath, resp.Header.Get("Location"))

	view := h.view(t)
	assert.True(t, view.Empty)
	viewer := h.renderer.data["viewer"].(insight.Viewer)
	assert.Equal(t, "admin", viewer.Username)
	assert.Len(t, h.renderer.data["nav"], 6)
}

func TestLogoutClearsIdentity(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	resp := h.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, insight.LoginPath, resp.Header.Get("Location"))

	resp = h.get(t, "/dashboard")
	assert.Equal(t, insight.LoginPath, resp.Header.Get("Location"))
}

func TestUploadSortEditFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")

	resp := h.upload(t, "sales.csv", salesCSV)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	view := h.view(t)
	require.False(t, view.Empty)
	assert.Equal(t, 2, view.Table.Total)
	assert.Equal(t, "$1,225", view.Display.TotalSales)
	assert.Equal(t, "Data uploaded successfully (Visibility: admin)", h.renderer.data["flash"].(session.Flash).Message)

	resp = h.post(t, "/dashboard/sort/Amount", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp = h.post(t, "/dashboard/sort/Amount", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	view = h.view(t)
	assert.Equal(t, "Showing 2 of 2 records (Sorted by: Amount)", view.Table.Indicator)
	assert.Equal(t, "▼", headerGlyph(view, "Amount"))

	resp = h.get(t, "/editor/rows/1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "edit_row.html", h.renderer.name)

	form := url.Values{}
	for _, col := range view.Columns {
		form.Add("column", col)
		if col == "Amount" {
			form.Add("value", "75")
		} else {
			form.Add("value", "x")
		}
	}
	resp = h.post(t, "/editor/rows/1", form)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/editor", resp.Header.Get("Location"))

	view = h.view(t)
	assert.Equal(t, "$1,275", view.Display.TotalSales)
	assert.Equal(t, "Showing 2 of 2 records (Sorted by: Amount)", view.Table.Indicator, "edits keep the sort")
}

func TestSortUnknownColumnFlashes(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	h.upload(t, "sales.csv", salesCSV)

	resp := h.post(t, "/dashboard/sort/Nope", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	h.view(t)
	assert.Equal(t, "error", h.renderer.data["flash"].(session.Flash).Kind)
}

func TestSortIgnoresGetRequests(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	h.upload(t, "sales.csv", salesCSV)

	resp := h.get(t, "/dashboard/sort/Amount")
	assert.NotEqual(t, http.StatusSeeOther, resp.StatusCode)
	view := h.view(t)
	assert.NotContains(t, view.Table.Indicator, "Sorted by", "a cross-site link must not change the sort")
}

func TestLoginRotatesSessionCookie(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/login")
	planted := h.cookie
	require.NotEmpty(t, planted)

	h.login(t, "admin", "password123")
	assert.NotEqual(t, planted, h.cookie)
	h.view(t)
	assert.Equal(t, "admin", h.renderer.data["viewer"].(insight.Viewer).Username)

	h.cookie = planted
	resp := h.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, insight.LoginPath, resp.Header.Get("Location"), "the pre-login id is no longer signed in")
}

func TestUploadWithoutFile(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	resp := h.post(t, "/files/upload", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	h.view(t)
	assert.Equal(t, "Select a file to upload.", h.renderer.data["flash"].(session.Flash).Message)
}

func TestExportEmptyIsNoContent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	resp := h.get(t, "/reports/export.pdf")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestExportDownloads(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	h.upload(t, "sales.csv", salesCSV)

	resp := h.get(t, "/reports/export.pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "executive-sales-report-")
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp = h.get(t, "/reports/export.xlsx")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
}

func TestUsersRequireAdmin(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")

	resp := h.post(t, "/users", url.Values{"username": {"ana"}, "password": {"pw"}, "role": {"user"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp = h.get(t, "/users")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User created successfully", h.renderer.data["flash"].(session.Flash).Message)

	h.post(t, "/logout", nil)
	h.login(t, "ana", "pw")
	resp = h.get(t, "/users")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = h.post(t, "/users/1/delete", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.view(t)
	assert.Len(t, h.renderer.data["nav"], 5, "users entry hidden")
}

func TestProfileAndAlerts(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")

	resp := h.post(t, "/alerts", url.Values{"recipient": {"ops@example.com"}, "subject": {"Stock"}, "message": {"Low"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Len(t, h.backend.Alerts(), 1)

	resp = h.post(t, "/profile", url.Values{"current_password": {"nope"}, "new_password": {"x"}})
	assert.Equal(t, profilePath, resp.Header.Get("Location"))
	h.get(t, "/profile")
	assert.Equal(t, "Current password is incorrect", h.renderer.data["flash"].(session.Flash).Message)
}

func TestPresentationModeFlag(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	h.get(t, "/dashboard?present=1")
	assert.Equal(t, true, h.renderer.data["present"])
}

func TestAPIViewJSON(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	h.upload(t, "sales.csv", salesCSV)

	resp := h.get(t, "/api/view")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"username":"admin"`)
	assert.Contains(t, string(body), `"Laptop"`)
}

func TestProgressSSEReplaysLastEvent(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.StreamTimeout = 100 * time.Millisecond })
	h.login(t, "admin", "password123")
	h.hub.Publish(insight.ProgressEvent{UploadID: "up-9", Phase: insight.PhaseUploading, Sent: 5, Total: 10})

	resp := h.get(t, "/uploads/up-9/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"phase":"uploading"`)
	assert.Contains(t, string(body), `"percent":50`)
}

func TestProgressWebSocket(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = h.app.Listener(ln) }()
	t.Cleanup(func() { _ = h.app.Shutdown() })

	h.hub.Publish(insight.ProgressEvent{UploadID: "up-ws", Phase: insight.PhaseProcessing})

	header := http.Header{"Cookie": {defaultCookieName + "=" + h.cookie}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+ln.Addr().String()+"/uploads/up-ws/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	var event insight.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, insight.PhaseProcessing, event.Phase)

	h.hub.Publish(insight.ProgressEvent{UploadID: "up-ws", Phase: insight.PhaseDone})
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, insight.PhaseDone, event.Phase)
	assert.Equal(t, 100, event.Percent)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "password123")
	resp := h.get(t, "/uploads/x/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func headerGlyph(view insight.DashboardView, column string) string {
	for _, h := range view.Table.Headers {
		if h.Column == column {
			return h.Glyph
		}
	}
	return ""
}

func TestLoginIsThrottledPerAddress(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.LoginLimit = LoginLimit{Burst: 2, Every: time.Hour}
	})
	for range 2 {
		resp := h.post(t, "/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := h.post(t, "/login", url.Values{"username": {"admin"}, "password": {"password123"}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, tooManyLogins, h.renderer.data["error"])
	assert.Equal(t, "admin", h.renderer.data["username"])

	assert.Zero(t, h.server.PruneLimiter(time.Hour), "recent addresses are kept")
	assert.Equal(t, 1, h.server.PruneLimiter(-time.Second))
}

func TestLoginThrottleCanBeDisabled(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.LoginLimit = LoginLimit{Burst: -1}
	})
	for range 8 {
		resp := h.post(t, "/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}
