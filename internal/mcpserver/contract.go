package mcpserver

// NoteFormatContract describes the vault file formats LLM clients should
// follow when creating notes.
const NoteFormatContract = `# Mural Note Format Contract

A vault is a single flat directory. Every file in it is one note that can
be placed on any number of canvases.

## File types

- **Markdown notes** end with ` + "`.md`" + `. The file name stem is the note title.
- **Drawings** end with ` + "`.excalidraw`" + ` and hold an Excalidraw scene as JSON.

Names must not contain path separators and must not start with a dot.
Any other file in the vault is ignored.

## Markdown

` + "```" + `markdown
---
tags:                               # OPTIONAL – YAML list
  - project-x
---

# Weekly standup

Body text in standard Markdown. Inline #tags are indexed too.
Use [[other-note]] to link to another note by its file name stem.
` + "```" + `

1. Frontmatter is optional. When present the ` + "`---`" + ` fences must open the file.
2. Wikilinks target the file name stem without extension: ` + "`[[ideas]]`" + ` links to ` + "`ideas.md`" + `.
3. Encoding is UTF-8.

## Drawings

` + "```" + `json
{
  "type": "excalidraw",
  "version": 2,
  "elements": [],
  "appState": {},
  "files": {}
}
` + "```" + `

1. ` + "`elements`" + ` must be an array. A scene that fails this check is rejected.
2. Images are embedded in ` + "`files`" + ` as data URLs; there is no attachments folder.
3. Text elements are indexed for search.
`
