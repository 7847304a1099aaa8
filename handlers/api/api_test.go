package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"maildash/handlers"
	"maildash/middleware"
	"maildash/models"
	"maildash/remote"
	"maildash/session"
	"maildash/storage"
	"maildash/store"
	"maildash/utils"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/go-cmp/cmp"
)

type fakeRemote struct {
	mu         sync.Mutex
	emails     []models.Email
	classErr   error
	summaries  int
	lastSearch string
}

func (f *fakeRemote) AuthURL(ctx context.Context) (string, error) {
	return "https://auth", nil
}

func (f *fakeRemote) ExchangeCode(ctx context.Context, code string) error {
	return nil
}

func (f *fakeRemote) SyncMailbox(ctx context.Context, userID string) error {
	return nil
}

func (f *fakeRemote) ListEmails(ctx context.Context, userID string) ([]models.Email, error) {
	out := make([]models.Email, len(f.emails))
	copy(out, f.emails)
	return out, nil
}

func (f *fakeRemote) ClassifyEmail(ctx context.Context, emailID, userID string) (models.ClassifiedEmail, error) {
	if f.classErr != nil {
		return models.ClassifiedEmail{}, f.classErr
	}
	return models.ClassifiedEmail{ID: emailID, Classification: models.ClassUrgent}, nil
}

func (f *fakeRemote) ClassifyAll(ctx context.Context, userID string) ([]models.ClassifiedEmail, error) {
	return []models.ClassifiedEmail{{ID: "m2", Classification: models.ClassNewsletter}}, nil
}

func (f *fakeRemote) SummarizeEmail(ctx context.Context, emailID, userID string, mode models.SummaryMode) (string, error) {
	f.mu.Lock()
	f.summaries++
	f.mu.Unlock()
	return "summary of " + emailID + " (" + string(mode) + ")", nil
}

func (f *fakeRemote) SummarizeThread(ctx context.Context, threadID, userID string, mode models.SummaryMode) (string, error) {
	return "thread " + threadID, nil
}

func (f *fakeRemote) GenerateDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error) {
	return "Hello " + req.Recipient, nil
}

func (f *fakeRemote) GenerateReplyDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error) {
	return "Re to " + req.Recipient, nil
}

func (f *fakeRemote) IndexEmails(ctx context.Context, userID string) (models.IndexResult, error) {
	return models.IndexResult{Status: "ok", Indexed: len(f.emails)}, nil
}

func (f *fakeRemote) Search(ctx context.Context, userID, query string, k int) (*models.SearchResult, error) {
	f.lastSearch = query
	return &models.SearchResult{Answer: "yes", Matches: []models.SearchMatch{{EmailID: "m1", Score: 1}}}, nil
}

func (f *fakeRemote) RunAgent(ctx context.Context, emailID, userID string) (*models.AgentResult, error) {
	return &models.AgentResult{EmailID: emailID, Output: "done", Steps: []string{"done"}}, nil
}

type testEnv struct {
	app      *fiber.App
	remote   *fakeRemote
	sessions *session.Manager
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.InitDB(t.TempDir())
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := utils.NewLoggerTo(io.Discard, utils.ERROR)
	fake := &fakeRemote{emails: []models.Email{
		{ID: "m1", ThreadID: "t1", Sender: "a@example.com", Subject: "Older", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), HTMLBody: `<p onclick="x()">hi</p><script>bad()</script>`},
		{ID: "m2", ThreadID: "t2", Sender: "b@example.com", Subject: "Newer", Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Classification: models.ClassImportant},
	}}

	notify := NewNotificationHandler(log)
	reg := store.NewRegistry(fake, log, store.WithNotifier(notify))
	mgr := session.NewManager(fake, storage.NewSessionStorage(db), reg, "test-secret", time.Hour, log)

	token, _, err := mgr.Token(models.Session{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	group := app.Group("/api", middleware.RequireAuth(middleware.AuthConfig{
		Sessions: fibersession.New(),
		Resolver: mgr,
	}))
	NewHandlers(mgr, utils.NewTranslator(t.TempDir(), log), notify, log).Register(group)

	return &testEnv{app: app, remote: fake, sessions: mgr, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: app.Test() error = %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode
}

func TestListEmails(t *testing.T) {
	env := newTestEnv(t)

	var resp emailListResponse
	if code := env.do(t, "GET", "/api/emails", "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var got []string
	for _, e := range resp.Emails {
		got = append(got, e.ID)
	}
	if diff := cmp.Diff([]string{"m2", "m1"}, got); diff != "" {
		t.Errorf("emails order (-want +got):\n%s", diff)
	}
	if resp.Total != 2 || !resp.Synced {
		t.Errorf("Total = %d Synced = %v, want 2 true", resp.Total, resp.Synced)
	}

	if code := env.do(t, "GET", "/api/emails?classification=important", "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Emails) != 1 || resp.Emails[0].ID != "m2" || resp.Filtered != 1 {
		t.Errorf("filtered emails = %+v, want only m2", resp.Emails)
	}

	if code := env.do(t, "GET", "/api/emails?page=2&page_size=1", "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Emails) != 1 || resp.Emails[0].ID != "m1" || resp.TotalPages != 2 {
		t.Errorf("page 2 = %+v (pages %d), want m1 of 2 pages", resp.Emails, resp.TotalPages)
	}
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	env.token = "forged"

	var body map[string]interface{}
	if code := env.do(t, "GET", "/api/emails", "", &body); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
	if body["error"] == nil {
		t.Errorf("body = %v, want an error field", body)
	}
}

func TestGetEmail(t *testing.T) {
	env := newTestEnv(t)

	var resp struct {
		Email models.Email `json:"email"`
	}
	if code := env.do(t, "GET", "/api/emails/m1", "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if strings.Contains(resp.Email.HTMLBody, "script") || strings.Contains(resp.Email.HTMLBody, "onclick") {
		t.Errorf("HTMLBody not sanitised: %q", resp.Email.HTMLBody)
	}
	if resp.Email.PlainBody == "" {
		t.Error("PlainBody should be derived from the HTML body")
	}

	if code := env.do(t, "GET", "/api/emails/nope", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown email status = %d, want 404", code)
	}
}

func TestClassify(t *testing.T) {
	env := newTestEnv(t)

	var resp map[string]string
	if code := env.do(t, "POST", "/api/emails/m1/classify", "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["classification"] != "urgent" {
		t.Errorf("classification = %q, want urgent", resp["classification"])
	}

	var list emailListResponse
	env.do(t, "GET", "/api/emails?classification=urgent", "", &list)
	if len(list.Emails) != 1 || list.Emails[0].ID != "m1" {
		t.Errorf("urgent emails = %+v, want m1", list.Emails)
	}
}

func TestClassify_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "mail api 401", err: &remote.APIError{Status: 401, Detail: "expired"}, wantCode: http.StatusUnauthorized},
		{name: "mail api 500", err: &remote.APIError{Status: 500, Detail: "boom"}, wantCode: http.StatusBadGateway},
		{name: "transport", err: io.ErrUnexpectedEOF, wantCode: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.remote.classErr = tt.err

			if code := env.do(t, "POST", "/api/emails/m1/classify", "", nil); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestSummaries_Cached(t *testing.T) {
	env := newTestEnv(t)

	var first, second map[string]string
	env.do(t, "POST", "/api/emails/m1/summary?mode=bullet", "", &first)
	env.do(t, "POST", "/api/emails/m1/summary?mode=bullet", "", &second)

	if first["summary"] != "summary of m1 (bullet)" || first["summary"] != second["summary"] {
		t.Errorf("summaries = %q, %q", first["summary"], second["summary"])
	}
	if env.remote.summaries != 1 {
		t.Errorf("remote summarize calls = %d, want 1", env.remote.summaries)
	}

	var thread map[string]string
	if code := env.do(t, "POST", "/api/threads/t1/summary", "", &thread); code != http.StatusOK || thread["mode"] != "short" {
		t.Errorf("thread summary = %v (status %d), want default mode short", thread, code)
	}
}

func TestDrafts(t *testing.T) {
	env := newTestEnv(t)

	if code := env.do(t, "POST", "/api/drafts", `{"recipient":""}`, nil); code != http.StatusBadRequest {
		t.Errorf("empty draft status = %d, want 400", code)
	}

	var draft models.Draft
	if code := env.do(t, "POST", "/api/drafts", `{"recipient":"x@example.com","subject":"Hi","context":"intro"}`, &draft); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if draft.Text != "Hello x@example.com" || draft.Reply {
		t.Errorf("draft = %+v", draft)
	}

	env.do(t, "GET", "/api/emails", "", nil)
	if code := env.do(t, "POST", "/api/drafts/reply", `{"reply_to":"m2","context":"ok"}`, &draft); code != http.StatusOK {
		t.Fatalf("reply status = %d, want 200", code)
	}
	want := models.Draft{
		Request: models.DraftRequest{Recipient: "b@example.com", Subject: "Re: Newer", Context: "ok", ReplyTo: "m2"},
		Text:    "Re to b@example.com",
		Reply:   true,
	}
	if diff := cmp.Diff(want, draft); diff != "" {
		t.Errorf("reply draft (-want +got):\n%s", diff)
	}
}

func TestSearchAndAgent(t *testing.T) {
	env := newTestEnv(t)

	if code := env.do(t, "GET", "/api/search?q=%20", "", nil); code != http.StatusBadRequest {
		t.Errorf("blank search status = %d, want 400", code)
	}

	var res models.SearchResult
	if code := env.do(t, "GET", "/api/search?q=invoice&k=3", "", &res); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if res.Query != "invoice" || len(res.Matches) != 1 {
		t.Errorf("search result = %+v", res)
	}

	var idx models.IndexResult
	if code := env.do(t, "POST", "/api/search/index", "", &idx); code != http.StatusOK || idx.Indexed != 2 {
		t.Errorf("index = %+v (status %d)", idx, code)
	}

	var agent models.AgentResult
	if code := env.do(t, "POST", "/api/agent/m1", "", &agent); code != http.StatusOK || agent.Output != "done" {
		t.Errorf("agent = %+v (status %d)", agent, code)
	}
}

func TestStatsAndToken(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "GET", "/api/emails", "", nil)

	var stats struct {
		UserID string       `json:"user_id"`
		Stats  models.Stats `json:"stats"`
		Loaded bool         `json:"loaded"`
	}
	if code := env.do(t, "GET", "/api/stats", "", &stats); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if stats.UserID != "user-1" || stats.Stats.Total != 2 || !stats.Loaded {
		t.Errorf("stats = %+v", stats)
	}

	var tok map[string]string
	if code := env.do(t, "GET", "/api/token", "", &tok); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	sess, err := env.sessions.ParseToken(tok["token"])
	if err != nil || sess.UserID != "user-1" {
		t.Errorf("issued token parses to %+v, %v", sess, err)
	}
}

func TestNotifyRoutesByUser(t *testing.T) {
	n := NewNotificationHandler(utils.NewLoggerTo(io.Discard, utils.ERROR))
	idA, chA := n.subscribe("a")
	_, chB := n.subscribe("b")

	n.Notify("a", "classified", "Email classified", map[string]interface{}{"email_id": "m1"})

	select {
	case got := <-chA:
		if got.Type != "classified" || got.ID == "" {
			t.Errorf("notification = %+v", got)
		}
	default:
		t.Error("subscriber a received nothing")
	}
	select {
	case got := <-chB:
		t.Errorf("subscriber b received %+v", got)
	default:
	}

	n.unsubscribe(idA)
	if got := n.Subscribers("a"); got != 0 {
		t.Errorf("Subscribers(a) = %d, want 0", got)
	}
	if got := n.Subscribers("b"); got != 1 {
		t.Errorf("Subscribers(b) = %d, want 1", got)
	}
}
