// Package store holds the per-session mirror of the remote mailbox: the
// email list, the filtered view, the summary cache and the transient search
// and agent results. Every mutation merges by email id so that all views
// agree without refetching.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"maildash/models"
	"maildash/utils"
)

// DefaultSearchK is used when neither the caller nor the options set k
const DefaultSearchK = 5

// ErrEmptyQuery is returned by Search for a blank query
var ErrEmptyQuery = errors.New("search query is empty")

// API is the subset of the mail API the store drives
type API interface {
	SyncMailbox(ctx context.Context, userID string) error
	ListEmails(ctx context.Context, userID string) ([]models.Email, error)
	ClassifyEmail(ctx context.Context, emailID, userID string) (models.ClassifiedEmail, error)
	ClassifyAll(ctx context.Context, userID string) ([]models.ClassifiedEmail, error)
	SummarizeEmail(ctx context.Context, emailID, userID string, mode models.SummaryMode) (string, error)
	SummarizeThread(ctx context.Context, threadID, userID string, mode models.SummaryMode) (string, error)
	GenerateDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error)
	GenerateReplyDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error)
	IndexEmails(ctx context.Context, userID string) (models.IndexResult, error)
	Search(ctx context.Context, userID, query string, k int) (*models.SearchResult, error)
	RunAgent(ctx context.Context, emailID, userID string) (*models.AgentResult, error)
}

// Notifier receives the success notices shown to the user
type Notifier interface {
	Notify(userID, kind, message string, data map[string]interface{})
}

// Option configures a Store
type Option func(*Store)

// WithNotifier sends success notices to n
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithSearchK sets the default number of search matches
func WithSearchK(k int) Option {
	return func(s *Store) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// Store is safe for concurrent use. Identical in-flight calls are joined.
type Store struct {
	api      API
	log      *utils.Logger
	notifier Notifier
	defaultK int

	group     singleflight.Group
	summaries *utils.KeyedCache[models.SummaryKey, string]

	mu       sync.RWMutex
	emails   []models.Email
	filtered []models.Email
	criteria models.FilterCriteria
	selected string
	loaded   bool
	synced   bool
	loading  int
	lastErr  error
	draft    *models.Draft
	search   *models.SearchResult
	agent    map[string]*models.AgentResult
}

// New creates an empty store backed by api
func New(api API, log *utils.Logger, opts ...Option) *Store {
	if log == nil {
		log = utils.Log
	}
	s := &Store{
		api:       api,
		log:       log,
		defaultK:  DefaultSearchK,
		summaries: utils.NewKeyedCache[models.SummaryKey, string](),
		criteria:  models.DefaultCriteria(),
		emails:    []models.Email{},
		filtered:  []models.Email{},
		agent:     make(map[string]*models.AgentResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin bumps the loading counter and returns the matching decrement
func (s *Store) begin() func() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}
}

// fail logs and records err, returning it wrapped with op
func (s *Store) fail(op string, err error) error {
	s.log.Error("%s failed: %v", op, err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return fmt.Errorf("%s: %w", op, err)
}

// do joins identical in-flight calls under key. The shared call runs
// detached from any one caller's cancellation; each caller still returns
// as soon as its own ctx is done.
func (s *Store) do(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return fn(shared)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) succeed() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Store) notify(userID, kind, message string, data map[string]interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(userID, kind, message, data)
	}
}

// FetchEmails loads the mailbox. Once loaded, calls without force are cache
// hits. The server-side sync runs once per session unless forced. On error
// the previously loaded emails stay in place.
func (s *Store) FetchEmails(ctx context.Context, userID string, force bool) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded && !force {
		return nil
	}

	_, err := s.do(ctx, "fetch:"+strconv.FormatBool(force), func(ctx context.Context) (interface{}, error) {
		return nil, s.fetchEmails(ctx, userID, force)
	})
	return err
}

func (s *Store) fetchEmails(ctx context.Context, userID string, force bool) error {
	done := s.begin()
	defer done()

	s.mu.RLock()
	synced := s.synced
	s.mu.RUnlock()

	if force || !synced {
		if err := s.api.SyncMailbox(ctx, userID); err != nil {
			return s.fail("sync mailbox", err)
		}
		s.mu.Lock()
		s.synced = true
		s.mu.Unlock()
	}

	emails, err := s.api.ListEmails(ctx, userID)
	if err != nil {
		return s.fail("list emails", err)
	}
	for i := range emails {
		if emails[i].PlainBody == "" && emails[i].HTMLBody != "" {
			emails[i].PlainBody = utils.HTMLToText(emails[i].HTMLBody)
		}
	}
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})

	s.mu.Lock()
	s.emails = emails
	s.filtered = FilterEmails(emails, s.criteria)
	s.loaded = true
	s.lastErr = nil
	s.mu.Unlock()

	s.seedSummaries(emails)
	s.log.Info("loaded %d emails for %s", len(emails), userID)
	return nil
}

// seedSummaries adds the summaries the server sent along with the emails.
// Entries already cached win.
func (s *Store) seedSummaries(emails []models.Email) {
	for _, e := range emails {
		for mode, text := range e.Summaries {
			key := models.SummaryKey{Target: models.TargetEmail, ID: e.ID, Mode: models.ParseSummaryMode(string(mode))}
			if text != "" && !s.summaries.Has(key) {
				s.summaries.Set(key, text)
			}
		}
		if e.ThreadID == "" {
			continue
		}
		for mode, text := range e.ThreadSummaries {
			key := models.SummaryKey{Target: models.TargetThread, ID: e.ThreadID, Mode: models.ParseSummaryMode(string(mode))}
			if text != "" && !s.summaries.Has(key) {
				s.summaries.Set(key, text)
			}
		}
	}
}

// FetchEmail selects an email from the loaded list by id or document id.
// It never touches the network; ok is false when nothing matches.
func (s *Store) FetchEmail(emailID string) (models.Email, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.emails {
		if e.ID == emailID {
			s.selected = e.ID
			return e, true
		}
	}
	for _, e := range s.emails {
		if e.Matches(emailID) {
			s.selected = e.ID
			return e, true
		}
	}
	return models.Email{}, false
}

// FilterEmail classifies one email and merges the result by id
func (s *Store) FilterEmail(ctx context.Context, emailID, userID string) (models.Classification, error) {
	v, err := s.do(ctx, "classify:"+emailID, func(ctx context.Context) (interface{}, error) {
		done := s.begin()
		defer done()

		res, err := s.api.ClassifyEmail(ctx, emailID, userID)
		if err != nil {
			return nil, s.fail("classify email "+emailID, err)
		}
		s.merge([]models.ClassifiedEmail{{ID: emailID, Classification: res.Classification}})
		s.succeed()
		s.notify(userID, "classified", "Email classified", map[string]interface{}{
			"email_id":       emailID,
			"classification": res.Classification,
		})
		return res.Classification, nil
	})
	if err != nil {
		return "", err
	}
	return v.(models.Classification), nil
}

// FilterAllEmails classifies the whole mailbox. Emails missing from the
// response keep their previous classification.
func (s *Store) FilterAllEmails(ctx context.Context, userID string) ([]models.ClassifiedEmail, error) {
	v, err := s.do(ctx, "classify-all", func(ctx context.Context) (interface{}, error) {
		done := s.begin()
		defer done()

		res, err := s.api.ClassifyAll(ctx, userID)
		if err != nil {
			return nil, s.fail("classify all emails", err)
		}
		s.merge(res)
		s.succeed()
		s.notify(userID, "classified_all", fmt.Sprintf("%d emails classified", len(res)), map[string]interface{}{
			"count": len(res),
		})
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ClassifiedEmail), nil
}

// merge writes classifications into the master list and the filtered view.
// The filtered view is updated in place, not recomputed.
func (s *Store) merge(results []models.ClassifiedEmail) {
	if len(results) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		for i := range s.emails {
			if s.emails[i].Matches(r.ID) {
				s.emails[i].Classification = r.Classification
			}
		}
		for i := range s.filtered {
			if s.filtered[i].Matches(r.ID) {
				s.filtered[i].Classification = r.Classification
			}
		}
	}
}

// SummarizeEmail returns the summary of one email, asking the server only
// on a cache miss.
func (s *Store) SummarizeEmail(ctx context.Context, emailID, userID string, mode models.SummaryMode) (string, error) {
	key := models.SummaryKey{Target: models.TargetEmail, ID: emailID, Mode: models.ParseSummaryMode(string(mode))}
	return s.summarize(ctx, key, userID, s.api.SummarizeEmail)
}

// SummarizeThread returns the summary of a thread, asking the server only
// on a cache miss.
func (s *Store) SummarizeThread(ctx context.Context, threadID, userID string, mode models.SummaryMode) (string, error) {
	key := models.SummaryKey{Target: models.TargetThread, ID: threadID, Mode: models.ParseSummaryMode(string(mode))}
	return s.summarize(ctx, key, userID, s.api.SummarizeThread)
}

type summarizeFunc func(ctx context.Context, id, userID string, mode models.SummaryMode) (string, error)

func (s *Store) summarize(ctx context.Context, key models.SummaryKey, userID string, call summarizeFunc) (string, error) {
	if text, ok := s.summaries.Get(key); ok {
		return text, nil
	}

	flight := fmt.Sprintf("summary:%s:%s:%s", key.Target, key.Mode, key.ID)
	v, err := s.do(ctx, flight, func(ctx context.Context) (interface{}, error) {
		if text, ok := s.summaries.Get(key); ok {
			return text, nil
		}

		done := s.begin()
		defer done()

		text, err := call(ctx, key.ID, userID, key.Mode)
		if err != nil {
			return nil, s.fail(fmt.Sprintf("summarize %s %s", key.Target, key.ID), err)
		}
		s.summaries.Set(key, text)
		s.succeed()
		s.notify(userID, "summary", "Summary ready", map[string]interface{}{
			"target": key.Target,
			"id":     key.ID,
			"mode":   key.Mode,
		})
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GenerateDraftEmail writes a new email and remembers it as the last draft
func (s *Store) GenerateDraftEmail(ctx context.Context, userID string, req models.DraftRequest) (string, error) {
	return s.draftWith(ctx, userID, req, false)
}

// ResolveReply fills an empty recipient or subject of req from the loaded
// email req.ReplyTo names. Other requests are returned unchanged.
func (s *Store) ResolveReply(req models.DraftRequest) models.DraftRequest {
	if req.ReplyTo == "" {
		return req
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.emails {
		if e.Matches(req.ReplyTo) {
			if req.Recipient == "" {
				req.Recipient = e.Sender
			}
			if req.Subject == "" {
				req.Subject = utils.ReplySubject(e.Subject)
			}
			break
		}
	}
	return req
}

// GenerateReplyDraft writes a reply for ResolveReply(req)
func (s *Store) GenerateReplyDraft(ctx context.Context, userID string, req models.DraftRequest) (string, error) {
	return s.draftWith(ctx, userID, s.ResolveReply(req), true)
}

func (s *Store) draftWith(ctx context.Context, userID string, req models.DraftRequest, reply bool) (string, error) {
	done := s.begin()
	defer done()

	call, op := s.api.GenerateDraft, "generate draft"
	if reply {
		call, op = s.api.GenerateReplyDraft, "generate reply draft"
	}

	text, err := call(ctx, userID, req)
	if err != nil {
		return "", s.fail(op, err)
	}

	s.mu.Lock()
	s.draft = &models.Draft{Request: req, Text: text, Reply: reply}
	s.lastErr = nil
	s.mu.Unlock()

	s.notify(userID, "draft", "Draft generated", map[string]interface{}{"reply": reply})
	return text, nil
}

// IndexSearch asks the server to rebuild the semantic index
func (s *Store) IndexSearch(ctx context.Context, userID string) (models.IndexResult, error) {
	v, err := s.do(ctx, "index", func(ctx context.Context) (interface{}, error) {
		done := s.begin()
		defer done()

		res, err := s.api.IndexEmails(ctx, userID)
		if err != nil {
			return nil, s.fail("index emails", err)
		}
		s.succeed()
		s.notify(userID, "indexed", "Search index updated", map[string]interface{}{"indexed": res.Indexed})
		return res, nil
	})
	if err != nil {
		return models.IndexResult{}, err
	}
	return v.(models.IndexResult), nil
}

// Search runs a semantic search and replaces the stored result. A k of
// zero or less uses the default.
func (s *Store) Search(ctx context.Context, userID, query string, k int) (*models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.defaultK
	}

	v, err := s.do(ctx, fmt.Sprintf("search:%d:%s", k, query), func(ctx context.Context) (interface{}, error) {
		done := s.begin()
		defer done()

		res, err := s.api.Search(ctx, userID, query, k)
		if err != nil {
			return nil, s.fail("search", err)
		}
		if res == nil {
			res = &models.SearchResult{}
		}
		res.Query = query
		if res.Matches == nil {
			res.Matches = []models.SearchMatch{}
		}

		s.mu.Lock()
		s.search = res
		s.lastErr = nil
		s.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SearchResult), nil
}

// RunAgent runs the agent on one email and keeps the latest result for it
func (s *Store) RunAgent(ctx context.Context, emailID, userID string) (*models.AgentResult, error) {
	v, err := s.do(ctx, "agent:"+emailID, func(ctx context.Context) (interface{}, error) {
		done := s.begin()
		defer done()

		res, err := s.api.RunAgent(ctx, emailID, userID)
		if err != nil {
			return nil, s.fail("run agent on "+emailID, err)
		}

		s.mu.Lock()
		s.agent[emailID] = res
		s.lastErr = nil
		s.mu.Unlock()

		s.notify(userID, "agent", "Agent finished", map[string]interface{}{"email_id": emailID})
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.AgentResult), nil
}

// ApplyFilters recomputes the filtered view from the master list and
// returns it. It does no I/O.
func (s *Store) ApplyFilters(criteria models.FilterCriteria) []models.Email {
	criteria = NormalizeCriteria(criteria)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.criteria = criteria
	s.filtered = FilterEmails(s.emails, criteria)
	return cloneEmails(s.filtered)
}

// Emails returns the master list, newest first
func (s *Store) Emails() []models.Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEmails(s.emails)
}

// Filtered returns the current filtered view
func (s *Store) Filtered() []models.Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEmails(s.filtered)
}

// Criteria returns the criteria behind the filtered view
func (s *Store) Criteria() models.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Selected returns the email last picked with FetchEmail, as it currently
// stands in the master list.
func (s *Store) Selected() (models.Email, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return models.Email{}, false
	}
	for _, e := range s.emails {
		if e.ID == s.selected {
			return e, true
		}
	}
	return models.Email{}, false
}

// Summary returns a cached summary without calling the server
func (s *Store) Summary(key models.SummaryKey) (string, bool) {
	return s.summaries.Get(key)
}

// Summaries returns every cached summary
func (s *Store) Summaries() []models.Summary {
	keys := s.summaries.Keys()
	out := make([]models.Summary, 0, len(keys))
	for _, k := range keys {
		if text, ok := s.summaries.Get(k); ok {
			out = append(out, models.Summary{Key: k, Text: text})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Mode < b.Mode
	})
	return out
}

// LastDraft returns the most recent generated draft
func (s *Store) LastDraft() (models.Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return models.Draft{}, false
	}
	return *s.draft, true
}

// SearchResult returns the most recent search result, or nil
func (s *Store) SearchResult() *models.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.search
}

// AgentResult returns the latest agent result for an email
func (s *Store) AgentResult(emailID string) (*models.AgentResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.agent[emailID]
	return res, ok
}

// Loading reports whether any remote call is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Err returns the error of the last failed call, cleared by the next success
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Synced reports whether the mailbox was synced this session
func (s *Store) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// Loaded reports whether the email list has been fetched
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Grouped buckets the master list by classification
func (s *Store) Grouped() []models.ClassificationGroup {
	return GroupByClassification(s.Emails())
}

// Threads folds the master list into threads
func (s *Store) Threads() []models.EmailThread {
	return GroupThreads(s.Emails())
}

// Stats summarises the master list for the dashboard
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	st := models.Stats{
		Total:            len(s.emails),
		ByClassification: make(map[models.Classification]int),
	}
	for _, e := range s.emails {
		if e.IsUnread() {
			st.Unread++
		}
		if e.HasAttachments() {
			st.WithAttachments++
		}
		st.ByClassification[e.ClassificationOrDefault()]++
	}
	s.mu.RUnlock()

	st.Summaries = s.summaries.Len()
	return st
}

// Reset drops all session state
func (s *Store) Reset() {
	s.mu.Lock()
	s.emails = []models.Email{}
	s.filtered = []models.Email{}
	s.criteria = models.DefaultCriteria()
	s.selected = ""
	s.loaded = false
	s.synced = false
	s.lastErr = nil
	s.draft = nil
	s.search = nil
	s.agent = make(map[string]*models.AgentResult)
	s.mu.Unlock()

	s.summaries.Clear()
}

func cloneEmails(in []models.Email) []models.Email {
	out := make([]models.Email, len(in))
	copy(out, in)
	return out
}
