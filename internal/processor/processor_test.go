package processor

import (
	"strings"
	"testing"
)

func TestProcessor_ExtractText_CollapsesWhitespace(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "newlines and tabs collapse to single spaces",
			html: "<html><body><p>Hello\n\n\tworld</p>\n<p>again</p></body></html>",
			want: "Hello world again",
		},
		{
			name: "nested elements",
			html: `<div><h1>Title</h1>  <span>one</span>   <span>two</span></div>`,
			want: "Title one two",
		},
		{
			name: "empty body",
			html: `<html><body>   </body></html>`,
			want: "",
		},
	}

	p := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ExtractText(tt.html)
			if err != nil {
				t.Fatalf("ExtractText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := CollapseWhitespace("  a\nb\t\tc\r\n d  ")
	if got != "a b c d" {
		t.Errorf("CollapseWhitespace() = %q, want %q", got, "a b c d")
	}
}

func TestProcessor_PublishedDate(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantDate  string
		wantFound bool
	}{
		{
			name: "date present",
			html: `<html><head><script type="application/ld+json">
				{"mainEntity": {"datePublished": "2025-03-14T08:00:00Z"}}
			</script></head><body></body></html>`,
			wantDate:  "2025-03-14T08:00:00Z",
			wantFound: true,
		},
		{
			name:      "no metadata block",
			html:      `<html><body><p>plain page</p></body></html>`,
			wantDate:  "",
			wantFound: false,
		},
		{
			name: "block present but malformed",
			html: `<html><head><script type="application/ld+json">not json</script></head></html>`,
			wantDate:  "",
			wantFound: true,
		},
		{
			name: "block present without date",
			html: `<html><head><script type="application/ld+json">{"mainEntity": {}}</script></head></html>`,
			wantDate:  "",
			wantFound: true,
		},
	}

	p := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, found := p.PublishedDate(tt.html)
			if date != tt.wantDate {
				t.Errorf("PublishedDate() date = %q, want %q", date, tt.wantDate)
			}
			if found != tt.wantFound {
				t.Errorf("PublishedDate() found = %v, want %v", found, tt.wantFound)
			}
		})
	}
}

func TestProcessor_ExtractTitle(t *testing.T) {
	p := New()

	html := `<html><head><title>Course Forum - Week 3</title></head><body><p>Content</p></body></html>`
	if got := p.ExtractTitle(html); got != "Course Forum - Week 3" {
		t.Errorf("ExtractTitle() = %q, want %q", got, "Course Forum - Week 3")
	}

	if got := p.ExtractTitle(`<html><body><p>No title here</p></body></html>`); got != "" {
		t.Errorf("ExtractTitle() should return empty for no title, got %q", got)
	}
}

func TestProcessor_ExtractText_LongDocument(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 100; i++ {
		sb.WriteString("<p>word</p>\n")
	}
	sb.WriteString("</body></html>")

	p := New()
	got, err := p.ExtractText(sb.String())
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if strings.Contains(got, "\n") {
		t.Error("extracted text should not contain newlines")
	}
}
