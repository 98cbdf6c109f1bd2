// Package geometry converts between viewport pixels and world space.
//
// World space is fixed: note positions are stored in it and never change
// with the camera. The camera's pan is the viewport-relative screen offset
// of the world origin, and zoom is a positive scale factor.
package geometry

import "math"

// Zoom limits applied by callers before any transform.
const (
	MinZoom     = 0.1
	MaxZoom     = 2.0
	DefaultZoom = 1.0
)

// SurfaceSize is the extent of the world surface on each axis; world
// coordinates lie in [-SurfaceSize/2, SurfaceSize/2].
const SurfaceSize = 100000.0

// Camera maps world space to viewport pixels.
type Camera struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// Point is a 2D point. Whether it is in screen or world space depends on
// where it came from.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClampZoom limits z to [MinZoom, MaxZoom]. Non-finite or non-positive
// values fall back to DefaultZoom.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) || math.IsInf(z, 0) || z <= 0 {
		return DefaultZoom
	}
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// ClampWorld keeps p inside the world surface.
func ClampWorld(p Point) Point {
	const half = SurfaceSize / 2
	return Point{
		X: math.Min(half, math.Max(-half, p.X)),
		Y: math.Min(half, math.Max(-half, p.Y)),
	}
}

// ScreenToWorld converts an absolute screen position to world space.
// viewport is the screen position of the viewport's top-left corner.
func ScreenToWorld(screen, viewport Point, cam Camera) Point {
	return Point{
		X: (screen.X - viewport.X - cam.PanX) / cam.Zoom,
		Y: (screen.Y - viewport.Y - cam.PanY) / cam.Zoom,
	}
}

// WorldToScreen converts a world position to an absolute screen position.
func WorldToScreen(world, viewport Point, cam Camera) Point {
	return Point{
		X: world.X*cam.Zoom + cam.PanX + viewport.X,
		Y: world.Y*cam.Zoom + cam.PanY + viewport.Y,
	}
}

// AdjustPanForZoom returns the camera pan that keeps the world point under
// pointer at the same screen position once zoom changes to newZoom.
func AdjustPanForZoom(pointer, viewport Point, old Camera, newZoom float64) (panX, panY float64) {
	relX := pointer.X - viewport.X
	relY := pointer.Y - viewport.Y
	world := ScreenToWorld(pointer, viewport, old)
	return relX - world.X*newZoom, relY - world.Y*newZoom
}

// ZoomAt returns cam zoomed to newZoom (clamped) around pointer.
func ZoomAt(pointer, viewport Point, cam Camera, newZoom float64) Camera {
	z := ClampZoom(newZoom)
	px, py := AdjustPanForZoom(pointer, viewport, cam, z)
	return Camera{PanX: px, PanY: py, Zoom: z}
}

// PanBy shifts the camera by a screen-space delta.
func PanBy(cam Camera, dx, dy float64) Camera {
	cam.PanX += dx
	cam.PanY += dy
	return cam
}
