package models

import (
	"strings"
	"time"
)

// Classification is the label the remote classifier assigns to an email
type Classification string

const (
	ClassImportant    Classification = "important"
	ClassUrgent       Classification = "urgent"
	ClassNewsletter   Classification = "newsletter"
	ClassPromotional  Classification = "promotional"
	ClassNormal       Classification = "normal"
	ClassUnclassified Classification = "unclassified"
)

// Classifications lists the labels in display order
var Classifications = []Classification{
	ClassUrgent,
	ClassImportant,
	ClassNormal,
	ClassNewsletter,
	ClassPromotional,
	ClassUnclassified,
}

// ParseClassification normalises a server or form value. Empty and unknown
// values map to ClassUnclassified.
func ParseClassification(s string) Classification {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Classifications {
		if c == known {
			return c
		}
	}
	return ClassUnclassified
}

// LabelUnread is the provider label carried by unread messages
const LabelUnread = "UNREAD"

// Email represents a message as returned by the mail API
type Email struct {
	ID             string         `json:"id"`
	DocID          string         `json:"_id,omitempty"`
	ThreadID       string         `json:"thread_id"`
	Sender         string         `json:"sender"`
	Recipients     []string       `json:"recipients"`
	Subject        string         `json:"subject"`
	Snippet        string         `json:"snippet"`
	PlainBody      string         `json:"body"`
	HTMLBody       string         `json:"html_body,omitempty"`
	Date           time.Time      `json:"date"`
	Classification Classification `json:"classification,omitempty"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Labels         []string       `json:"labels,omitempty"`

	// Summaries the server already holds for this email and its thread
	Summaries       map[SummaryMode]string `json:"summaries,omitempty"`
	ThreadSummaries map[SummaryMode]string `json:"thread_summaries,omitempty"`
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// IsUnread reports whether the message still carries the UNREAD label
func (e Email) IsUnread() bool {
	for _, l := range e.Labels {
		if l == LabelUnread {
			return true
		}
	}
	return false
}

// HasAttachments reports whether the message has at least one attachment
func (e Email) HasAttachments() bool {
	return len(e.Attachments) > 0
}

// ClassificationOrDefault returns the classification, treating an unset
// value as unclassified.
func (e Email) ClassificationOrDefault() Classification {
	if e.Classification == "" {
		return ClassUnclassified
	}
	return e.Classification
}

// Priority derives the priority bucket from the classification
func (e Email) Priority() Priority {
	switch e.Classification {
	case ClassUrgent, ClassImportant:
		return PriorityHigh
	case ClassNormal:
		return PriorityMedium
	case ClassNewsletter, ClassPromotional:
		return PriorityLow
	default:
		return ""
	}
}

// Matches reports whether id names this email, by id or document id
func (e Email) Matches(id string) bool {
	return id != "" && (e.ID == id || e.DocID == id)
}

// ClassifiedEmail is one entry of a classify response
type ClassifiedEmail struct {
	ID             string         `json:"id"`
	Classification Classification `json:"classification"`
}
