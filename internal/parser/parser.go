// Package parser reads markdown note buffers: the title line, optional YAML
// frontmatter, wikilinks and tags.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	headingRe  = regexp.MustCompile(`^(#{1,6}[ \t]+)`)
)

// Result holds the output of parsing a markdown buffer.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, title, wikilinks, and tags.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       TitleLine(string(data)),
	}, nil
}

// TitleLine returns the display title of a markdown buffer: the first line
// of the body with any heading marker removed.
func TitleLine(content string) string {
	_, body := splitFrontmatter([]byte(content))
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimRight(line, "\r")
	line = headingRe.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// ReplaceTitleLine rewrites the title line of content to title. A heading
// marker on the old line is kept. Frontmatter, when present, is untouched
// and the first body line is treated as the title line.
func ReplaceTitleLine(content, title string) string {
	head, body := content[:bodyOffset(content)], content[bodyOffset(content):]

	line, rest, hasRest := strings.Cut(body, "\n")
	cr := strings.HasSuffix(line, "\r")
	prefix := headingRe.FindString(strings.TrimSuffix(line, "\r"))

	var b strings.Builder
	b.WriteString(head)
	b.WriteString(prefix)
	b.WriteString(title)
	if cr {
		b.WriteString("\r")
	}
	if hasRest {
		b.WriteString("\n")
		b.WriteString(rest)
	}
	return b.String()
}

// bodyOffset returns the byte offset where the body starts: 0 without
// frontmatter, otherwise just past the closing delimiter line.
func bodyOffset(content string) int {
	const delim = "---"
	if !strings.HasPrefix(content, delim) {
		return 0
	}
	idx := strings.Index(content[len(delim):], "\n"+delim)
	if idx < 0 {
		return 0
	}
	end := len(delim) + idx + 1 + len(delim)
	if nl := strings.IndexByte(content[end:], '\n'); nl >= 0 {
		return end + nl + 1
	}
	return len(content)
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the markdown body. Invalid YAML leaves the whole buffer as body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	off := bodyOffset(string(data))
	if off == 0 {
		return nil, string(data)
	}
	yamlBlock := bytes.TrimPrefix(data[:off], []byte("---"))
	if i := bytes.LastIndex(yamlBlock, []byte("\n---")); i >= 0 {
		yamlBlock = yamlBlock[:i]
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, string(data[off:])
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if list, ok := fm["tags"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
