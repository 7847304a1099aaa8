package models

// PaginatedEmails is one page of an email list
type PaginatedEmails struct {
	Emails      []Email `json:"emails"`
	Page        int     `json:"page"`
	PageSize    int     `json:"page_size"`
	TotalPages  int     `json:"total_pages"`
	TotalEmails int     `json:"total_emails"`
	HasNext     bool    `json:"has_next"`
	HasPrev     bool    `json:"has_prev"`
}

// Paginate cuts page (1-based) out of emails. Out-of-range pages yield an
// empty slice and report page totalPages+1; page and pageSize below 1 are
// clamped to 1, and pageSize is clamped to the list length.
func Paginate(emails []Email, page, pageSize int) *PaginatedEmails {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(emails)
	// a page larger than the list holds it all; keeps the maths below in range
	if limit := total; pageSize > limit {
		if limit < 1 {
			limit = 1
		}
		pageSize = limit
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages+1 {
		page = totalPages + 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &PaginatedEmails{
		Emails:      emails[start:end],
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalEmails: total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
