package models

// Session is the authenticated identity correlating requests to one mailbox
type Session struct {
	UserID string `json:"user_id"`
}

// Stats summarises the loaded mailbox for the dashboard
type Stats struct {
	Total            int                    `json:"total"`
	Unread           int                    `json:"unread"`
	WithAttachments  int                    `json:"with_attachments"`
	ByClassification map[Classification]int `json:"by_classification"`
	Summaries        int                    `json:"summaries"`
}

// ClassificationGroup is one bucket of the grouped view
type ClassificationGroup struct {
	Classification Classification `json:"classification"`
	Emails         []Email        `json:"emails"`
}
