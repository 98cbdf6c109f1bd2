package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntags:\n  - go\n  - canvas\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "canvas" {
		t.Errorf("tags = %v, want [go canvas]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("Shopping list\n- milk #errands\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Shopping list" {
		t.Errorf("title = %q", r.Title)
	}
	if len(r.Tags) != 1 || r.Tags[0] != "errands" {
		t.Errorf("tags = %v", r.Tags)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	links := extractLinks("See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again.")
	if len(links) != 2 || links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestTitleLine(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"\n":                  "",
		"Plain title\nbody":   "Plain title",
		"## Heading\r\nbody":  "Heading",
		"---\na: 1\n---\nT\n": "T",
	}
	for in, want := range cases {
		if got := TitleLine(in); got != want {
			t.Errorf("TitleLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplaceTitleLine(t *testing.T) {
	cases := []struct{ in, title, want string }{
		{"old\nbody\n", "new", "new\nbody\n"},
		{"# old\nbody", "new", "# new\nbody"},
		{"", "new", "new"},
		{"\n", "new", "new\n"},
		{"old\r\nbody", "new", "new\r\nbody"},
		{"---\ntags: [a]\n---\n# old\nbody", "new", "---\ntags: [a]\n---\n# new\nbody"},
	}
	for _, c := range cases {
		if got := ReplaceTitleLine(c.in, c.title); got != c.want {
			t.Errorf("ReplaceTitleLine(%q, %q) = %q, want %q", c.in, c.title, got, c.want)
		}
	}
}
