package remote

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"maildash/models"
	"maildash/utils"
)

type seenRequest struct {
	method string
	path   string
	query  map[string]string
	auth   string
	body   string
}

// newTestClient starts an in-memory fasthttp server running handler and
// returns a client dialing it. Every request is recorded in the returned
// slice pointer.
func newTestClient(t *testing.T, handler fasthttp.RequestHandler, opts ...Option) (*Client, *[]seenRequest) {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	seen := &[]seenRequest{}
	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			r := seenRequest{
				method: string(ctx.Method()),
				path:   string(ctx.Path()),
				query:  map[string]string{},
				auth:   string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)),
				body:   string(ctx.PostBody()),
			}
			ctx.QueryArgs().VisitAll(func(k, v []byte) {
				r.query[string(k)] = string(v)
			})
			*seen = append(*seen, r)
			handler(ctx)
		},
	}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { ln.Close() })

	opts = append([]Option{
		WithDial(func(addr string) (net.Conn, error) { return ln.Dial() }),
		WithLogger(utils.NewLogger(utils.ERROR)),
	}, opts...)
	return New("http://mail.test", 2*time.Second, opts...), seen
}

func jsonReply(status int, body string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(status)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(body)
	}
}

func TestClient_ListEmails(t *testing.T) {
	body := `{"emails":[
		{"id":"m1","_id":{"$oid":"665f"},"thread_id":"t1","sender":"a@example.com","subject":"Hi",
		 "snippet":"s","plain_body":"hello","date":"2026-03-01T10:00:00","classification":"Urgent",
		 "labels":["UNREAD"],"attachments":[{"filename":"a.pdf","content_type":"application/pdf","size":10}],
		 "summaries":{"short":"tl;dr"}},
		{"_id":"665g","subject":"No id","date":{"$date":"2026-03-02T08:00:00Z"}}
	]}`
	c, seen := newTestClient(t, jsonReply(200, body))

	got, err := c.ListEmails(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}

	want := []models.Email{
		{
			ID:             "m1",
			DocID:          "665f",
			ThreadID:       "t1",
			Sender:         "a@example.com",
			Subject:        "Hi",
			Snippet:        "s",
			PlainBody:      "hello",
			Date:           time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Classification: models.ClassUrgent,
			Labels:         []string{"UNREAD"},
			Attachments:    []models.Attachment{{Filename: "a.pdf", ContentType: "application/pdf", Size: 10}},
			Summaries:      map[models.SummaryMode]string{models.ModeShort: "tl;dr"},
		},
		{
			ID:      "665g",
			DocID:   "665g",
			Subject: "No id",
			Date:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListEmails() mismatch (-want +got):\n%s", diff)
	}

	if len(*seen) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(*seen))
	}
	r := (*seen)[0]
	if r.method != "GET" || r.path != "/emails/mails" || r.query["user_id"] != "user-1" {
		t.Errorf("request = %s %s %v, want GET /emails/mails user_id=user-1", r.method, r.path, r.query)
	}
}

func TestClient_Endpoints(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		reply      string
		call       func(c *Client) (interface{}, error)
		want       interface{}
		wantMethod string
		wantPath   string
		wantQuery  map[string]string
	}{
		{
			name:  "classify one",
			reply: `{"email_id":"m1","classification":"newsletter"}`,
			call: func(c *Client) (interface{}, error) {
				return c.ClassifyEmail(ctx, "m1", "u")
			},
			want:       models.ClassifiedEmail{ID: "m1", Classification: models.ClassNewsletter},
			wantMethod: "POST",
			wantPath:   "/filtering/emails/m1/filter",
			wantQuery:  map[string]string{"user_id": "u"},
		},
		{
			name:  "classify all",
			reply: `{"classified_emails":[{"id":"a","classification":"important"},{"id":"b","classification":"bogus"}]}`,
			call: func(c *Client) (interface{}, error) {
				return c.ClassifyAll(ctx, "u")
			},
			want: []models.ClassifiedEmail{
				{ID: "a", Classification: models.ClassImportant},
				{ID: "b", Classification: models.ClassUnclassified},
			},
			wantMethod: "POST",
			wantPath:   "/filtering/emails/filter-all",
			wantQuery:  map[string]string{"user_id": "u"},
		},
		{
			name:  "summarize thread",
			reply: `{"summary":"thread tl;dr","cached":true}`,
			call: func(c *Client) (interface{}, error) {
				return c.SummarizeThread(ctx, "t1", "u", models.ModeBullet)
			},
			want:       "thread tl;dr",
			wantMethod: "POST",
			wantPath:   "/summarize/threads/t1/summarize",
			wantQuery:  map[string]string{"user_id": "u", "mode": "bullet"},
		},
		{
			name:  "index",
			reply: `{"status":"ok","count":12}`,
			call: func(c *Client) (interface{}, error) {
				return c.IndexEmails(ctx, "u")
			},
			want:       models.IndexResult{Status: "ok", Indexed: 12},
			wantMethod: "POST",
			wantPath:   "/search/rag/index",
			wantQuery:  map[string]string{"user_id": "u"},
		},
		{
			name:  "search",
			reply: `{"answer":"Found it","matches":[{"email_id":"m1","thread_id":"t1","score":0.9}]}`,
			call: func(c *Client) (interface{}, error) {
				return c.Search(ctx, "u", "invoice", 3)
			},
			want: &models.SearchResult{
				Query:   "invoice",
				Answer:  "Found it",
				Matches: []models.SearchMatch{{EmailID: "m1", ThreadID: "t1", Score: 0.9}},
			},
			wantMethod: "GET",
			wantPath:   "/search/rag/search",
			wantQuery:  map[string]string{"user_id": "u", "q": "invoice", "k": "3"},
		},
		{
			name:  "agent with steps",
			reply: `{"email_id":"m1","result":{"output":"Archive it","intermediate_steps":["read",["tool","x"]]}}`,
			call: func(c *Client) (interface{}, error) {
				return c.RunAgent(ctx, "m1", "u")
			},
			want: &models.AgentResult{
				EmailID: "m1",
				Steps:   []string{"read", `["tool","x"]`, "Archive it"},
				Output:  "Archive it",
			},
			wantMethod: "POST",
			wantPath:   "/think/agent/run/m1",
			wantQuery:  map[string]string{"user_id": "u"},
		},
		{
			name:  "agent plain string",
			reply: `{"result":"Reply tomorrow"}`,
			call: func(c *Client) (interface{}, error) {
				return c.RunAgent(ctx, "m2", "u")
			},
			want: &models.AgentResult{
				EmailID: "m2",
				Steps:   []string{"Reply tomorrow"},
				Output:  "Reply tomorrow",
			},
			wantMethod: "POST",
			wantPath:   "/think/agent/run/m2",
			wantQuery:  map[string]string{"user_id": "u"},
		},
		{
			name:  "auth url",
			reply: `{"auth_url":"https://accounts.example.com/o/oauth2"}`,
			call: func(c *Client) (interface{}, error) {
				return c.AuthURL(ctx)
			},
			want:       "https://accounts.example.com/o/oauth2",
			wantMethod: "GET",
			wantPath:   "/emails/auth/google",
			wantQuery:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, seen := newTestClient(t, jsonReply(200, tt.reply))

			got, err := tt.call(c)
			if err != nil {
				t.Fatalf("call error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}

			if len(*seen) != 1 {
				t.Fatalf("server saw %d requests, want 1", len(*seen))
			}
			r := (*seen)[0]
			if r.method != tt.wantMethod {
				t.Errorf("method = %s, want %s", r.method, tt.wantMethod)
			}
			if r.path != tt.wantPath {
				t.Errorf("path = %s, want %s", r.path, tt.wantPath)
			}
			if diff := cmp.Diff(tt.wantQuery, r.query); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_DraftSendsJSONBody(t *testing.T) {
	c, seen := newTestClient(t, jsonReply(200, `{"draft":"Dear Bob"}`), WithToken("secret"))

	req := models.DraftRequest{Recipient: "bob@example.com", Subject: "Re: Hi", Context: "say yes", ReplyTo: "m1"}
	got, err := c.GenerateReplyDraft(context.Background(), "u", req)
	if err != nil {
		t.Fatalf("GenerateReplyDraft() error = %v", err)
	}
	if got != "Dear Bob" {
		t.Errorf("GenerateReplyDraft() = %q, want %q", got, "Dear Bob")
	}

	r := (*seen)[0]
	if r.path != "/personalized/drafts/reply" {
		t.Errorf("path = %s, want /personalized/drafts/reply", r.path)
	}
	if r.auth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", r.auth)
	}
	wantBody := `{"recipient":"bob@example.com","subject":"Re: Hi","context":"say yes","reply_to":"m1"}`
	if r.body != wantBody {
		t.Errorf("body = %s, want %s", r.body, wantBody)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantIs     error
		wantDetail string
	}{
		{name: "unauthorized", status: 401, body: `{"detail":"token expired"}`, wantIs: ErrUnauthorized, wantDetail: "token expired"},
		{name: "not found", status: 404, body: `{"detail":"Email not found"}`, wantIs: ErrNotFound, wantDetail: "Email not found"},
		{name: "server error text", status: 500, body: `boom`, wantDetail: "boom"},
		{name: "error field", status: 502, body: `{"error":"upstream"}`, wantDetail: "upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, jsonReply(tt.status, tt.body))

			_, err := c.ListEmails(context.Background(), "u")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("ListEmails() error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", apiErr.Status, tt.status)
			}
			if apiErr.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", apiErr.Detail, tt.wantDetail)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
		})
	}
}

func TestClient_CanceledContext(t *testing.T) {
	c, seen := newTestClient(t, jsonReply(200, `{}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.SyncMailbox(ctx, "u"); !errors.Is(err, context.Canceled) {
		t.Errorf("SyncMailbox() error = %v, want context.Canceled", err)
	}
	if len(*seen) != 0 {
		t.Errorf("server saw %d requests, want none", len(*seen))
	}
}

func TestClient_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, jsonReply(200, `{"emails":`))

	if _, err := c.ListEmails(context.Background(), "u"); err == nil {
		t.Error("ListEmails() with truncated body succeeded")
	}
}

func TestNewAPIError_TruncatesOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name      string
		detail    string
		wantRunes int
	}{
		{name: "short detail kept", detail: `["ok"]`, wantRunes: 6},
		{name: "long multibyte detail", detail: `["` + strings.Repeat("é", 300) + `"]`, wantRunes: 200 + len("...")},
		{name: "long cjk detail", detail: `{"msg":"` + strings.Repeat("件", 250) + `"}`, wantRunes: 200 + len("...")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(500, []byte(`{"detail":`+tt.detail+`}`))
			if !utf8.ValidString(err.Detail) {
				t.Fatalf("Detail is not valid UTF-8: %q", err.Detail)
			}
			if got := utf8.RuneCountInString(err.Detail); got != tt.wantRunes {
				t.Errorf("Detail has %d runes, want %d", got, tt.wantRunes)
			}
		})
	}
}
