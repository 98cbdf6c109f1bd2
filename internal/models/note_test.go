package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := map[string]Kind{
		"a.md":                KindMarkdown,
		"A.MD":                KindMarkdown,
		"sketch.excalidraw":   KindDrawing,
		"/abs/path/x.drawing": KindDrawing,
	}
	for p, want := range cases {
		got, ok := KindOf(p)
		if !ok || got != want {
			t.Errorf("KindOf(%q) = %q,%v want %q", p, got, ok, want)
		}
	}
	if _, ok := KindOf("readme.txt"); ok {
		t.Error("txt should not be recognized")
	}
}

func TestStripExt(t *testing.T) {
	if got := StripExt("bar.md"); got != "bar" {
		t.Errorf("got %q", got)
	}
	if got := StripExt("v1.2 notes"); got != "v1.2 notes" {
		t.Errorf("unrecognized ext should stay: %q", got)
	}
	if got := StripExt("x.md.md"); got != "x.md" {
		t.Errorf("only one extension is stripped: %q", got)
	}
}

func TestBaseName(t *testing.T) {
	for _, p := range []string{"notes.md", "/home/u/vault/notes.md", `C:\vault\notes.md`, "sub/notes.md"} {
		if got := BaseName(p); got != "notes.md" {
			t.Errorf("BaseName(%q) = %q", p, got)
		}
	}
}

func TestNoteJSONUsesXY(t *testing.T) {
	n := Note{ID: "1", Kind: KindMarkdown, WorldX: 10, WorldY: -4, Width: 200, Height: 100, FilePath: "a.md"}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"x":10`) || !strings.Contains(s, `"y":-4`) {
		t.Errorf("expected x/y in %s", s)
	}
	if strings.Contains(s, "WorldX") {
		t.Errorf("world fields leaked: %s", s)
	}
	var back Note
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.WorldX != 10 || back.WorldY != -4 || back.FilePath != "a.md" {
		t.Errorf("decoded = %+v", back)
	}
}

func TestRetargetRefreshesKind(t *testing.T) {
	n := Note{Kind: KindMarkdown, FilePath: "a.md"}
	n.Retarget("a.excalidraw")
	if n.Kind != KindDrawing || n.Title != "a" {
		t.Errorf("after retarget: %+v", n)
	}
}

func TestNormalizeCanvasList(t *testing.T) {
	got := NormalizeCanvasList([]string{"Work", "", DefaultCanvas, "Work", "Ideas"})
	want := []string{DefaultCanvas, "Work", "Ideas"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}
