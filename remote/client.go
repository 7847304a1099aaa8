// Package remote is the HTTP client for the mail intelligence API: mailbox
// sync, classification, summaries, drafts, semantic search and agent runs.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"maildash/models"
	"maildash/utils"
)

const userAgent = "maildash/1.0"

// Client talks to the mail API over fasthttp
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
	log     *utils.Logger
}

// Option configures a Client
type Option func(*Client)

// WithToken sends token as a bearer credential on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger replaces the default logger
func WithLogger(log *utils.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithDial overrides how connections are opened. Tests use an in-memory
// listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                userAgent,
			MaxIdleConnDuration: 30 * time.Second,
		},
		log: utils.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
// The earlier of the context deadline and the client timeout bounds it.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.log.Warn("%s %s failed after %v: %v", method, path, time.Since(start), err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	c.log.Debug("%s %s -> %d in %v", method, path, status, time.Since(start))
	if status < 200 || status >= 300 {
		return newAPIError(status, resp.Body())
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func userQuery(userID string) url.Values {
	q := url.Values{}
	q.Set("user_id", userID)
	return q
}

// AuthURL returns the provider consent URL
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var resp authURLResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/emails/auth/google", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.AuthURL == "" {
		return "", fmt.Errorf("mail api returned an empty auth url")
	}
	return resp.AuthURL, nil
}

// ExchangeCode hands the OAuth callback code to the server
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	q := url.Values{}
	q.Set("code", code)
	return c.do(ctx, fasthttp.MethodGet, "/emails/auth/callback", q, nil, nil)
}

// SyncMailbox asks the server to pull new mail from the provider
func (c *Client) SyncMailbox(ctx context.Context, userID string) error {
	return c.do(ctx, fasthttp.MethodGet, "/emails/mails/fetch", userQuery(userID), nil, nil)
}

// ListEmails returns the stored emails in server order
func (c *Client) ListEmails(ctx context.Context, userID string) ([]models.Email, error) {
	var resp emailsResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/emails/mails", userQuery(userID), nil, &resp); err != nil {
		return nil, err
	}
	emails := make([]models.Email, 0, len(resp.Emails))
	for _, w := range resp.Emails {
		emails = append(emails, w.toModel())
	}
	return emails, nil
}

// ClassifyEmail classifies one email
func (c *Client) ClassifyEmail(ctx context.Context, emailID, userID string) (models.ClassifiedEmail, error) {
	var resp classifyResponse
	path := "/filtering/emails/" + url.PathEscape(emailID) + "/filter"
	if err := c.do(ctx, fasthttp.MethodPost, path, userQuery(userID), nil, &resp); err != nil {
		return models.ClassifiedEmail{}, err
	}
	id := resp.EmailID
	if id == "" {
		id = emailID
	}
	return models.ClassifiedEmail{ID: id, Classification: models.ParseClassification(resp.Classification)}, nil
}

// ClassifyAll classifies every stored email and returns the labels assigned
func (c *Client) ClassifyAll(ctx context.Context, userID string) ([]models.ClassifiedEmail, error) {
	var resp classifyAllResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/filtering/emails/filter-all", userQuery(userID), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.ClassifiedEmail, 0, len(resp.ClassifiedEmails))
	for _, ce := range resp.ClassifiedEmails {
		out = append(out, models.ClassifiedEmail{ID: ce.ID, Classification: models.ParseClassification(ce.Classification)})
	}
	return out, nil
}

func (c *Client) summarize(ctx context.Context, path, userID string, mode models.SummaryMode) (string, error) {
	q := userQuery(userID)
	q.Set("mode", string(mode))
	var resp summaryResponse
	if err := c.do(ctx, fasthttp.MethodPost, path, q, nil, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// SummarizeEmail summarizes one email in the given mode
func (c *Client) SummarizeEmail(ctx context.Context, emailID, userID string, mode models.SummaryMode) (string, error) {
	return c.summarize(ctx, "/summarize/emails/"+url.PathEscape(emailID)+"/summarize", userID, mode)
}

// SummarizeThread summarizes a whole thread in the given mode
func (c *Client) SummarizeThread(ctx context.Context, threadID, userID string, mode models.SummaryMode) (string, error) {
	return c.summarize(ctx, "/summarize/threads/"+url.PathEscape(threadID)+"/summarize", userID, mode)
}

// GenerateDraft writes a new email from the request context
func (c *Client) GenerateDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error) {
	var resp draftResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/summarize/drafts/generate", userQuery(userID), req, &resp); err != nil {
		return "", err
	}
	return resp.Draft, nil
}

// GenerateReplyDraft writes a reply in the user's own style
func (c *Client) GenerateReplyDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error) {
	var resp draftResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/personalized/drafts/reply", userQuery(userID), req, &resp); err != nil {
		return "", err
	}
	return resp.Draft, nil
}

// IndexEmails rebuilds the user's semantic index
func (c *Client) IndexEmails(ctx context.Context, userID string) (models.IndexResult, error) {
	var resp indexResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/search/rag/index", userQuery(userID), nil, &resp); err != nil {
		return models.IndexResult{}, err
	}
	indexed := resp.Indexed
	if indexed == 0 {
		indexed = resp.Count
	}
	return models.IndexResult{Status: resp.Status, Indexed: indexed}, nil
}

// Search runs a semantic search returning at most k matches
func (c *Client) Search(ctx context.Context, userID, query string, k int) (*models.SearchResult, error) {
	q := userQuery(userID)
	q.Set("q", query)
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	var resp searchResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/search/rag/search", q, nil, &resp); err != nil {
		return nil, err
	}
	result := &models.SearchResult{
		Query:   query,
		Answer:  resp.Answer,
		Matches: make([]models.SearchMatch, 0, len(resp.Matches)),
	}
	for _, m := range resp.Matches {
		result.Matches = append(result.Matches, models.SearchMatch{EmailID: m.EmailID, ThreadID: m.ThreadID, Score: m.Score})
	}
	return result, nil
}

// RunAgent runs the triage agent on one email
func (c *Client) RunAgent(ctx context.Context, emailID, userID string) (*models.AgentResult, error) {
	var resp agentResponse
	path := "/think/agent/run/" + url.PathEscape(emailID)
	if err := c.do(ctx, fasthttp.MethodPost, path, userQuery(userID), nil, &resp); err != nil {
		return nil, err
	}
	id := resp.EmailID
	if id == "" {
		id = emailID
	}
	return decodeAgentResult(id, resp.Result)
}
