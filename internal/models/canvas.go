package models

// DefaultCanvas is always present and always first in the canvas list.
const DefaultCanvas = "Main"

// Pan is the screen-space offset of the world origin.
type Pan struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CanvasState is the persisted layout of one canvas.
type CanvasState struct {
	Notes []Note  `json:"notes"`
	Pan   Pan     `json:"pan"`
	Zoom  float64 `json:"zoom"`
}

// NormalizeCanvasList pins DefaultCanvas first and drops blanks and
// duplicates while keeping the remaining order.
func NormalizeCanvasList(names []string) []string {
	out := []string{DefaultCanvas}
	seen := map[string]struct{}{DefaultCanvas: {}}
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
