package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"suretakip/internal/db"
	"suretakip/internal/domain"
	"suretakip/internal/events"
	"suretakip/internal/migrate"
	"suretakip/internal/repo"
)

const (
	testSecret  = "test-secret"
	testAPIKey  = "st_test_key"
	testAccount = "ali@firma.com"
	testPass    = "gizli123"
)

type testServer struct {
	URL    string
	Repo   repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	if err := r.UpsertAccount(ctx, testAccount, testPass); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := r.InsertAPIKey(ctx, repo.APIKey{
		ID:      domain.NewID(),
		ActorID: "relay@firma.com",
		Name:    "test key",
		KeyHash: repo.HashAPIKey(testAPIKey),
	}); err != nil {
		t.Fatalf("seed api key: %v", err)
	}

	handler, err := New(Config{
		DB:           conn,
		Repo:         r,
		Events:       events.Writer{DB: conn},
		BasePath:     "/v1",
		Auth:         AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
		WatchTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func obtainToken(t *testing.T, srv *testServer) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/token", map[string]string{
		"email":    testAccount,
		"password": testPass,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("token status %d: %s", res.StatusCode, string(data))
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &tok); err != nil || tok.Token == "" {
		t.Fatalf("token response: %v %s", err, string(data))
	}
	return tok.Token
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthIsOpen(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document", nil,
		authHeader("not.a.token"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", res.StatusCode)
	}
}

func TestTokenFlowWrongPassword(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/token", map[string]string{
		"email":    testAccount,
		"password": "yanlis",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDocumentLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document", nil, authHeader(token))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before first write, got %d: %s", res.StatusCode, string(data))
	}

	doc := domain.Document{
		Obligations: []domain.Obligation{{ID: "o1", ProjectName: "GES-1", Status: "pending"}},
		Jobs:        []domain.Job{},
		Projects:    []domain.Project{},
		LastUpdate:  "2025-03-15T10:00:00.000Z",
	}
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", doc, authHeader(token))
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		t.Fatalf("put status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document", nil, authHeader(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}
	var got domain.Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Obligations) != 1 || got.LastUpdate != doc.LastUpdate {
		t.Fatalf("round trip: %+v", got)
	}
	if got.UpdatedBy != testAccount {
		t.Fatalf("updatedBy should be filled from the token subject, got %q", got.UpdatedBy)
	}
}

func TestPutDocumentRequiresStamp(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", domain.Document{
		Obligations: []domain.Obligation{},
		Jobs:        []domain.Job{},
		Projects:    []domain.Project{},
	}, authHeader(token))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	doc := domain.Document{
		Obligations: []domain.Obligation{}, Jobs: []domain.Job{}, Projects: []domain.Project{},
		LastUpdate: "2025-03-15T10:00:00.000Z",
	}
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", doc, authHeader(token))
	if res.StatusCode >= 300 {
		t.Fatalf("seed doc: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document", nil,
		map[string]string{"X-Api-Key": testAPIKey})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key get: %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document", nil,
		map[string]string{"X-Api-Key": "bilinmeyen"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown api key: expected 401, got %d", res.StatusCode)
	}
}

func TestWatchTimesOutWhenUnchanged(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	doc := domain.Document{
		Obligations: []domain.Obligation{}, Jobs: []domain.Job{}, Projects: []domain.Project{},
		LastUpdate: "2025-03-15T10:00:00.000Z",
	}
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", doc, authHeader(token))
	if res.StatusCode >= 300 {
		t.Fatalf("seed doc: %d %s", res.StatusCode, string(data))
	}

	// Same stamp: nothing new, the poll should time out with 204.
	res, _ = doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v1/document/watch?since=2025-03-15T10:00:00.000Z&timeout_s=1", nil, authHeader(token))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}

	// Older stamp: the stored document is newer and returns immediately.
	res, data = doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v1/document/watch?since=2025-03-15T09:00:00.000Z&timeout_s=1", nil, authHeader(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, string(data))
	}
	var got domain.Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LastUpdate != doc.LastUpdate {
		t.Fatalf("stamp: %q", got.LastUpdate)
	}
}

func TestWatchWakesOnPut(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	seed := domain.Document{
		Obligations: []domain.Obligation{}, Jobs: []domain.Job{}, Projects: []domain.Project{},
		LastUpdate: "2025-03-15T10:00:00.000Z",
	}
	if res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", seed, authHeader(token)); res.StatusCode >= 300 {
		t.Fatalf("seed doc: %d %s", res.StatusCode, string(data))
	}

	type watchResult struct {
		status int
		body   []byte
	}
	results := make(chan watchResult, 1)
	go func() {
		res, data := doJSON(t, srv.Client(), http.MethodGet,
			srv.URL+"/v1/document/watch?since=2025-03-15T10:00:00.000Z&timeout_s=10", nil, authHeader(token))
		results <- watchResult{res.StatusCode, data}
	}()

	// Give the watcher time to subscribe before writing.
	time.Sleep(200 * time.Millisecond)
	updated := seed
	updated.LastUpdate = "2025-03-15T10:05:00.000Z"
	if res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", updated, authHeader(token)); res.StatusCode >= 300 {
		t.Fatalf("update doc: %d %s", res.StatusCode, string(data))
	}

	select {
	case r := <-results:
		if r.status != http.StatusOK {
			t.Fatalf("watch status %d: %s", r.status, string(r.body))
		}
		var got domain.Document
		if err := json.Unmarshal(r.body, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.LastUpdate != updated.LastUpdate {
			t.Fatalf("watch returned stale stamp %q", got.LastUpdate)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not wake on put")
	}
}

func TestUserEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/users/Ayse@Firma.com", domain.AppUser{
		DisplayName: "Ayşe Yılmaz",
		Title:       "Çevre Mühendisi",
	}, authHeader(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put user: %d %s", res.StatusCode, string(data))
	}
	var saved domain.AppUser
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.Email != "ayse@firma.com" {
		t.Fatalf("email not lowercased: %q", saved.Email)
	}
	if saved.LastUpdated.IsZero() {
		t.Fatalf("lastUpdated not stamped")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/users", nil, authHeader(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list users: %d %s", res.StatusCode, string(data))
	}
	var users []domain.AppUser
	if err := json.Unmarshal(data, &users); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(users) != 1 || users[0].DisplayName != "Ayşe Yılmaz" {
		t.Fatalf("list: %+v", users)
	}
}

func TestUserPhotoCap(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/users/ali@firma.com", domain.AppUser{
		PhotoURL: "data:image/png;base64," + strings.Repeat("A", photoURLMaxBytes),
	}, authHeader(token))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized photo: expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestWebhookWithoutAssistant(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/webhooks/teams", map[string]string{
		"text": "yarın GES-1 için rapor hazırlansın",
	}, authHeader(token))
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without assistant, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDocumentReplacedEventAppended(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := obtainToken(t, srv)
	doc := domain.Document{
		Obligations: []domain.Obligation{}, Jobs: []domain.Job{}, Projects: []domain.Project{},
		LastUpdate: "2025-03-15T10:00:00.000Z",
	}
	if res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v1/document", doc, authHeader(token)); res.StatusCode >= 300 {
		t.Fatalf("put: %d %s", res.StatusCode, string(data))
	}
	var count int
	row := srv.Repo.DB.QueryRowContext(context.Background(),
		`SELECT count(*) FROM events WHERE type='document.replaced' AND actor_id=?`, testAccount)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("query events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 audit event, got %d", count)
	}
}
