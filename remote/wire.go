package remote

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"maildash/models"
)

// flexTime accepts the date layouts the mail API emits: RFC 3339 with or
// without zone, fractional seconds, and RFC 1123 header dates.
type flexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	// Mongo extended JSON: {"$date": "..."}
	if len(b) > 0 && b[0] == '{' {
		var ext struct {
			Date flexTime `json:"$date"`
		}
		if err := json.Unmarshal(b, &ext); err != nil {
			return err
		}
		t.Time = ext.Date.Time
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("date: unrecognised layout %q", s)
}

// docID accepts a plain string or a Mongo {"$oid": "..."} object
type docID string

func (d *docID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(b, &oid); err != nil {
			return err
		}
		*d = docID(oid.OID)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = docID(s)
	return nil
}

type wireEmail struct {
	ID              string                        `json:"id"`
	DocID           docID                         `json:"_id"`
	ThreadID        string                        `json:"thread_id"`
	Sender          string                        `json:"sender"`
	Recipients      []string                      `json:"recipients"`
	Subject         string                        `json:"subject"`
	Snippet         string                        `json:"snippet"`
	Body            string                        `json:"body"`
	PlainBody       string                        `json:"plain_body"`
	HTMLBody        string                        `json:"html_body"`
	Date            flexTime                      `json:"date"`
	Classification  string                        `json:"classification"`
	Attachments     []models.Attachment           `json:"attachments"`
	Labels          []string                      `json:"labels"`
	Summaries       map[models.SummaryMode]string `json:"summaries"`
	ThreadSummaries map[models.SummaryMode]string `json:"thread_summaries"`
}

func (w wireEmail) toModel() models.Email {
	e := models.Email{
		ID:              w.ID,
		DocID:           string(w.DocID),
		ThreadID:        w.ThreadID,
		Sender:          w.Sender,
		Recipients:      w.Recipients,
		Subject:         w.Subject,
		Snippet:         w.Snippet,
		PlainBody:       w.Body,
		HTMLBody:        w.HTMLBody,
		Date:            w.Date.Time,
		Attachments:     w.Attachments,
		Labels:          w.Labels,
		Summaries:       w.Summaries,
		ThreadSummaries: w.ThreadSummaries,
	}
	if e.PlainBody == "" {
		e.PlainBody = w.PlainBody
	}
	if w.Classification != "" {
		e.Classification = models.ParseClassification(w.Classification)
	}
	if e.ID == "" {
		e.ID = e.DocID
	}
	return e
}

type authURLResponse struct {
	AuthURL string `json:"auth_url"`
}

type emailsResponse struct {
	Emails []wireEmail `json:"emails"`
}

type classifyResponse struct {
	EmailID        string `json:"email_id"`
	Classification string `json:"classification"`
}

type classifyAllResponse struct {
	ClassifiedEmails []struct {
		ID             string `json:"id"`
		Classification string `json:"classification"`
	} `json:"classified_emails"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
	Cached  bool   `json:"cached"`
}

type draftResponse struct {
	Draft string `json:"draft"`
}

type indexResponse struct {
	Status  string `json:"status"`
	Indexed int    `json:"indexed"`
	Count   int    `json:"count"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Matches []struct {
		EmailID  string  `json:"email_id"`
		ThreadID string  `json:"thread_id"`
		Score    float64 `json:"score"`
	} `json:"matches"`
}

type agentResponse struct {
	EmailID string          `json:"email_id"`
	Result  json.RawMessage `json:"result"`
}

// decodeAgentResult flattens the agent payload. The result is either a
// bare string or an object carrying output, intermediate_steps and error.
func decodeAgentResult(emailID string, raw json.RawMessage) (*models.AgentResult, error) {
	res := &models.AgentResult{EmailID: emailID, Steps: []string{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return res, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode agent result: %w", err)
		}
		res.Output = s
		res.Steps = append(res.Steps, s)
		return res, nil
	}

	var obj struct {
		Output            string            `json:"output"`
		Error             string            `json:"error"`
		IntermediateSteps []json.RawMessage `json:"intermediate_steps"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode agent result: %w", err)
	}
	for _, step := range obj.IntermediateSteps {
		res.Steps = append(res.Steps, stepText(step))
	}
	if obj.Output != "" {
		res.Steps = append(res.Steps, obj.Output)
	}
	res.Output = obj.Output
	res.Error = obj.Error
	return res, nil
}

func stepText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}
