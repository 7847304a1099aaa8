package store

import (
	"sort"
	"strings"

	"maildash/models"
)

// NormalizeCriteria maps empty selectors to "all". The search text is kept
// verbatim: whitespace is part of the substring to match.
func NormalizeCriteria(c models.FilterCriteria) models.FilterCriteria {
	c.Classification = strings.ToLower(strings.TrimSpace(c.Classification))
	if c.Classification == "" {
		c.Classification = models.ClassificationAll
	}
	c.Priority = models.Priority(strings.ToLower(strings.TrimSpace(string(c.Priority))))
	if c.Priority == "" {
		c.Priority = models.PriorityAll
	}
	return c
}

// FilterEmails returns the emails matching every predicate of c, in their
// original order. The input slice is not modified.
func FilterEmails(emails []models.Email, c models.FilterCriteria) []models.Email {
	c = NormalizeCriteria(c)
	needle := strings.ToLower(c.SearchText)

	out := make([]models.Email, 0, len(emails))
	for _, e := range emails {
		if !matchesClassification(e, c.Classification) {
			continue
		}
		if needle != "" && !matchesText(e, needle) {
			continue
		}
		if c.Priority != models.PriorityAll && e.Priority() != c.Priority {
			continue
		}
		if c.UnreadOnly && !e.IsUnread() {
			continue
		}
		if c.HasAttachments && !e.HasAttachments() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesClassification(e models.Email, want string) bool {
	if want == models.ClassificationAll {
		return true
	}
	return string(e.ClassificationOrDefault()) == want
}

func matchesText(e models.Email, needle string) bool {
	return strings.Contains(strings.ToLower(e.Subject), needle) ||
		strings.Contains(strings.ToLower(e.Sender), needle) ||
		strings.Contains(strings.ToLower(e.Snippet), needle)
}

// GroupByClassification buckets emails by classification. Empty groups are
// omitted and the group order follows models.Classifications.
func GroupByClassification(emails []models.Email) []models.ClassificationGroup {
	buckets := make(map[models.Classification][]models.Email)
	for _, e := range emails {
		cls := e.ClassificationOrDefault()
		buckets[cls] = append(buckets[cls], e)
	}

	groups := make([]models.ClassificationGroup, 0, len(buckets))
	for _, cls := range models.Classifications {
		if mails, ok := buckets[cls]; ok {
			groups = append(groups, models.ClassificationGroup{Classification: cls, Emails: mails})
		}
	}
	return groups
}

// GroupThreads folds emails into threads. Messages inside a thread run
// oldest first; threads are ordered by their latest message, newest first.
// An email without a thread id forms a thread of its own.
func GroupThreads(emails []models.Email) []models.EmailThread {
	index := make(map[string]int)
	var threads []models.EmailThread

	for _, e := range emails {
		id := e.ThreadID
		if id == "" {
			id = e.ID
		}
		i, ok := index[id]
		if !ok {
			i = len(threads)
			index[id] = i
			threads = append(threads, models.EmailThread{ID: id, Subject: e.Subject})
		}
		t := &threads[i]
		t.Messages = append(t.Messages, e)
		t.MessageCount++
		if e.Date.After(t.LastDate) {
			t.LastDate = e.Date
		}
		if e.IsUnread() {
			t.Unread = true
		}
		if e.HasAttachments() {
			t.HasAttachment = true
		}
		if !contains(t.Participants, e.Sender) && e.Sender != "" {
			t.Participants = append(t.Participants, e.Sender)
		}
	}

	for i := range threads {
		msgs := threads[i].Messages
		sort.SliceStable(msgs, func(a, b int) bool { return msgs[a].Date.Before(msgs[b].Date) })
		threads[i].Subject = msgs[0].Subject
	}
	sort.SliceStable(threads, func(a, b int) bool { return threads[a].LastDate.After(threads[b].LastDate) })
	return threads
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
