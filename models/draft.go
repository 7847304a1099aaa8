package models

// DraftRequest is the body sent to the draft generators
type DraftRequest struct {
	Recipient string `json:"recipient" form:"recipient"`
	Subject   string `json:"subject" form:"subject"`
	Context   string `json:"context" form:"context"`
	ReplyTo   string `json:"reply_to,omitempty" form:"reply_to"`
}

// Draft is a generated draft kept for display
type Draft struct {
	Request DraftRequest `json:"request"`
	Text    string       `json:"draft"`
	Reply   bool         `json:"reply"`
}
