package mcpserver

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mural/internal/noteservice"
	"github.com/starford/mural/internal/storage"
	"github.com/starford/mural/internal/testutil"
)

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()
	v := testutil.TestVault(t)
	svc := noteservice.NewService(v.FS, testutil.TestDB(t), testutil.Logger())
	return New(svc, "test"), v.FS
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error
	switch name {
	case "search_files":
		result, err = srv.searchFiles(ctx, req)
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "create_file":
		result, err = srv.createFile(ctx, req)
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadFile(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_file", map[string]any{
		"name":    "test",
		"content": "# Test\nHello",
	})
	if text := resultText(r); text != "created: test.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_file", map[string]any{"path": "test.md"})
	if text := resultText(r); text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateDrawing(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_file", map[string]any{
		"name":    "sketch",
		"type":    "drawing",
		"content": `{"elements":[{"type":"text","text":"roadmap"}]}`,
	})
	if r.IsError {
		t.Fatalf("create drawing: %s", resultText(r))
	}
	r = callTool(t, srv, "read_file", map[string]any{"path": "sketch.excalidraw"})
	if !strings.Contains(resultText(r), "roadmap") {
		t.Errorf("drawing = %q", resultText(r))
	}

	r = callTool(t, srv, "create_file", map[string]any{
		"name":    "broken",
		"type":    "drawing",
		"content": `{"elements":{}}`,
	})
	if !r.IsError {
		t.Error("expected error for malformed scene")
	}
}

func TestListFiles(t *testing.T) {
	srv, fs := testServer(t)
	for _, name := range []string{"a", "b"} {
		if _, err := fs.Create(name, "markdown"); err != nil {
			t.Fatal(err)
		}
	}

	r := callTool(t, srv, "list_files", map[string]any{})
	got := strings.Split(resultText(r), "\n")
	sort.Strings(got)
	if strings.Join(got, ",") != "a.md,b.md" {
		t.Errorf("list = %v", got)
	}
}

func TestReadFileMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_file", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
}

func TestSearchAndBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_file", map[string]any{"name": "b", "content": "target"})
	_ = callTool(t, srv, "create_file", map[string]any{"name": "a", "content": "links to [[b]]"})

	r := callTool(t, srv, "get_backlinks", map[string]any{"name": "b.md"})
	if text := resultText(r); text != "a.md" {
		t.Errorf("backlinks = %q, want a.md", text)
	}

	r = callTool(t, srv, "search_files", map[string]any{"query": "links"})
	if !strings.Contains(resultText(r), `"a.md"`) {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_note_contract", map[string]any{})
	if !strings.Contains(resultText(r), ".excalidraw") {
		t.Error("contract should describe drawings")
	}
}
