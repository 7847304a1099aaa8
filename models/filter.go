package models

// Priority is the coarse bucket derived from classification
type Priority string

const (
	PriorityAll    Priority = "all"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ClassificationAll disables the classification predicate
const ClassificationAll = "all"

// FilterCriteria is the view-state projection applied over the email list
type FilterCriteria struct {
	Classification string   `json:"classification" query:"classification"`
	SearchText     string   `json:"search" query:"search"`
	Priority       Priority `json:"priority" query:"priority"`
	UnreadOnly     bool     `json:"unread" query:"unread"`
	HasAttachments bool     `json:"attachments" query:"attachments"`
}

// DefaultCriteria matches every email
func DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		Classification: ClassificationAll,
		Priority:       PriorityAll,
	}
}
