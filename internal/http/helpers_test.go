package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"storefront/internal/config"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/metrics"
	"storefront/internal/repos"
)

const seedPassword = "Passw0rd!"

type testApp struct {
	app  *fiber.App
	deps *handlers.Deps
	db   *sqlx.DB
	csrf string
}

// newTestApp wires the real app over an in-memory store and fetches a CSRF token.
func newTestApp(t *testing.T, opt handlers.AppOptions) *testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Config{
		DBDSN:              ":memory:",
		MediaDir:           t.TempDir(),
		SessionIdleTimeout: 30 * time.Minute,
		CheckoutMaxRetries: 3,
		OrderEventsTopic:   "orders.placed",
	}
	opt.TemplateDir = "../../web/templates"
	if opt.GlobalLimit == 0 {
		opt.GlobalLimit = 1000
	}
	if opt.APILimit == 0 {
		opt.APILimit = 1000
	}
	if opt.SearchLimit == 0 {
		opt.SearchLimit = 1000
	}
	if opt.LoginLimit == 0 {
		opt.LoginLimit = 1000
	}
	d := handlers.NewDeps(db, cfg, metrics.New())
	ta := &testApp{app: handlers.NewApp(d, opt), deps: d, db: db}

	resp := ta.get(t, "/login", "")
	ta.csrf = cookieOf(resp, "csrf_")
	if ta.csrf == "" {
		t.Fatal("csrf token missing")
	}
	return ta
}

func cookieOf(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (ta *testApp) send(t *testing.T, req *http.Request, sid string) *http.Response {
	t.Helper()
	if ta.csrf != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_", Value: ta.csrf})
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func (ta *testApp) get(t *testing.T, path, sid string) *http.Response {
	t.Helper()
	return ta.send(t, httptest.NewRequest("GET", path, nil), sid)
}

// post submits a form with the CSRF token filled in.
func (ta *testApp) post(t *testing.T, path string, form url.Values, sid string) *http.Response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf") == "" && ta.csrf != "" {
		form.Set("csrf", ta.csrf)
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ta.send(t, req, sid)
}

func (ta *testApp) json(t *testing.T, method, path string, body any, sid string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return ta.send(t, req, sid)
}

// login binds a fresh session for one of the seeded users.
func (ta *testApp) login(t *testing.T, email string) string {
	t.Helper()
	sid := "sid-" + strings.Split(email, "@")[0]
	if _, err := ta.deps.Auth.Login(context.Background(), sid, email, seedPassword); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return sid
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func (ta *testApp) stock(t *testing.T, productID string) int {
	t.Helper()
	var n int
	if err := ta.db.Get(&n, `SELECT stock FROM products WHERE id = ?`, productID); err != nil {
		t.Fatalf("stock %s: %v", productID, err)
	}
	return n
}

type logEntry struct {
	Level  string         `json:"level"`
	Kind   string         `json:"kind"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// captureLogs collects the structured entries written while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	old := applog.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	defer applog.SetOutput(old)

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
