package models

import "time"

// EmailThread groups the loaded emails that share a thread id
type EmailThread struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Participants  []string  `json:"participants"`
	MessageCount  int       `json:"message_count"`
	LastDate      time.Time `json:"last_date"`
	Messages      []Email   `json:"messages"`
	Unread        bool      `json:"unread"`
	HasAttachment bool      `json:"has_attachment"`
}
