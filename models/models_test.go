package models

import (
	"math"
	"testing"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		in   string
		want Classification
	}{
		{"urgent", ClassUrgent},
		{" Important ", ClassImportant},
		{"NEWSLETTER", ClassNewsletter},
		{"", ClassUnclassified},
		{"spam", ClassUnclassified},
	}

	for _, tt := range tests {
		if got := ParseClassification(tt.in); got != tt.want {
			t.Errorf("ParseClassification(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSummaryMode(t *testing.T) {
	tests := []struct {
		in   string
		want SummaryMode
	}{
		{"short", ModeShort},
		{"Detailed", ModeDetailed},
		{"bullet", ModeBullet},
		{"", ModeShort},
		{"long", ModeShort},
	}

	for _, tt := range tests {
		if got := ParseSummaryMode(tt.in); got != tt.want {
			t.Errorf("ParseSummaryMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmail_Priority(t *testing.T) {
	tests := []struct {
		class Classification
		want  Priority
	}{
		{ClassUrgent, PriorityHigh},
		{ClassImportant, PriorityHigh},
		{ClassNormal, PriorityMedium},
		{ClassNewsletter, PriorityLow},
		{ClassPromotional, PriorityLow},
		{ClassUnclassified, ""},
		{"", ""},
	}

	for _, tt := range tests {
		e := Email{Classification: tt.class}
		if got := e.Priority(); got != tt.want {
			t.Errorf("Email{%q}.Priority() = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestEmail_Matches(t *testing.T) {
	e := Email{ID: "m1", DocID: "doc-1"}
	if !e.Matches("m1") || !e.Matches("doc-1") {
		t.Error("Matches() should accept id and document id")
	}
	if e.Matches("") || e.Matches("m2") {
		t.Error("Matches() accepted an unrelated id")
	}
	if (Email{}).Matches("") {
		t.Error("empty id must never match")
	}
}

func TestPaginate(t *testing.T) {
	emails := make([]Email, 5)
	for i := range emails {
		emails[i].ID = string(rune('a' + i))
	}

	tests := []struct {
		name      string
		page      int
		size      int
		wantLen   int
		wantPages int
		wantNext  bool
		wantPrev  bool
		wantPage  int
	}{
		{name: "first page", page: 1, size: 2, wantLen: 2, wantPages: 3, wantNext: true},
		{name: "last partial page", page: 3, size: 2, wantLen: 1, wantPages: 3, wantPrev: true},
		{name: "past the end", page: 9, size: 2, wantLen: 0, wantPages: 3, wantPrev: true},
		{name: "clamped inputs", page: 0, size: 0, wantLen: 1, wantPages: 5, wantNext: true},
		{name: "huge page", page: math.MaxInt64/2 + 2, size: 2, wantLen: 0, wantPages: 3, wantPrev: true, wantPage: 4},
		{name: "huge page size", page: 1, size: math.MaxInt64, wantLen: 5, wantPages: 1},
		{name: "huge page and size", page: math.MaxInt64, size: math.MaxInt64, wantLen: 0, wantPages: 1, wantPrev: true, wantPage: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(emails, tt.page, tt.size)
			if len(p.Emails) != tt.wantLen {
				t.Errorf("len(Emails) = %d, want %d", len(p.Emails), tt.wantLen)
			}
			if p.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.wantPages)
			}
			if p.HasNext != tt.wantNext || p.HasPrev != tt.wantPrev {
				t.Errorf("HasNext/HasPrev = %v/%v, want %v/%v", p.HasNext, p.HasPrev, tt.wantNext, tt.wantPrev)
			}
			if tt.wantPage != 0 && p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.TotalEmails != 5 {
				t.Errorf("TotalEmails = %d, want 5", p.TotalEmails)
			}
		})
	}

	if p := Paginate(nil, 1, 10); p.TotalPages != 1 || len(p.Emails) != 0 {
		t.Errorf("Paginate(nil) = %+v, want one empty page", p)
	}
}
