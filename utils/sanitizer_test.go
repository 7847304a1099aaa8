package utils

import (
	"strings"
	"testing"
)

func TestSanitizeHTML_DropsScripts(t *testing.T) {
	got := SanitizeHTML(`<p>hello</p><script>alert(1)</script>`)
	if strings.Contains(got, "script") {
		t.Errorf("SanitizeHTML kept script tag: %q", got)
	}
	if !strings.Contains(got, "<p>hello</p>") {
		t.Errorf("SanitizeHTML dropped safe markup: %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	if got := StripHTML("<b>bold</b> text"); got != "bold text" {
		t.Errorf("StripHTML() = %q, want %q", got, "bold text")
	}
}

func TestHTMLToText(t *testing.T) {
	if got := HTMLToText("   "); got != "" {
		t.Errorf("HTMLToText(blank) = %q, want empty", got)
	}
	got := HTMLToText("<p>Meeting moved</p><p>See you at 3</p>")
	if !strings.Contains(got, "Meeting moved") || !strings.Contains(got, "See you at 3") {
		t.Errorf("HTMLToText() = %q, missing paragraph text", got)
	}
	if strings.Contains(got, "<p>") {
		t.Errorf("HTMLToText() = %q, still contains markup", got)
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Quarterly report", want: "Re: Quarterly report"},
		{name: "already reply", in: "Re: Quarterly report", want: "Re: Quarterly report"},
		{name: "lowercase prefix", in: "re: lunch", want: "re: lunch"},
		{name: "german prefix", in: "AW: Termin", want: "AW: Termin"},
		{name: "empty", in: "  ", want: "Re:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplySubject(tt.in); got != tt.want {
				t.Errorf("ReplySubject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
