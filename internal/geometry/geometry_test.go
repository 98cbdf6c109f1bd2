package geometry

import (
	"math"
	"math/rand"
	"testing"
)

const tolerance = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		cam := Camera{PanX: r.Float64()*4000 - 2000, PanY: r.Float64()*4000 - 2000, Zoom: MinZoom + r.Float64()*(MaxZoom-MinZoom)}
		vp := Point{X: r.Float64() * 300, Y: r.Float64() * 300}
		p := Point{X: r.Float64() * 2000, Y: r.Float64() * 2000}

		back := WorldToScreen(ScreenToWorld(p, vp, cam), vp, cam)
		if !near(back.X, p.X) || !near(back.Y, p.Y) {
			t.Fatalf("round trip %v -> %v (cam %+v vp %+v)", p, back, cam, vp)
		}
	}
}

func TestScreenToWorld(t *testing.T) {
	cam := Camera{PanX: 100, PanY: 50, Zoom: 2}
	got := ScreenToWorld(Point{X: 320, Y: 170}, Point{X: 20, Y: 20}, cam)
	if got.X != 100 || got.Y != 50 {
		t.Errorf("got %+v, want {100 50}", got)
	}
}

func TestAdjustPanForZoomKeepsPointStationary(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		old := Camera{PanX: r.Float64()*1000 - 500, PanY: r.Float64()*1000 - 500, Zoom: MinZoom + r.Float64()*(MaxZoom-MinZoom)}
		vp := Point{X: 250, Y: 40}
		pointer := Point{X: vp.X + r.Float64()*1200, Y: vp.Y + r.Float64()*800}
		newZoom := MinZoom + r.Float64()*(MaxZoom-MinZoom)

		world := ScreenToWorld(pointer, vp, old)
		px, py := AdjustPanForZoom(pointer, vp, old, newZoom)
		after := WorldToScreen(world, vp, Camera{PanX: px, PanY: py, Zoom: newZoom})
		if !near(after.X, pointer.X) || !near(after.Y, pointer.Y) {
			t.Fatalf("pointer drifted: %+v -> %+v", pointer, after)
		}
	}
}

func TestAdjustPanForZoomUsesViewportRelativePointer(t *testing.T) {
	old := Camera{Zoom: 1}
	vp := Point{X: 300, Y: 0}
	// Pointer exactly on the viewport's origin: world origin stays put.
	px, py := AdjustPanForZoom(Point{X: 300, Y: 0}, vp, old, 2)
	if px != 0 || py != 0 {
		t.Errorf("pan = (%v,%v), want (0,0)", px, py)
	}
}

func TestClampZoom(t *testing.T) {
	cases := map[float64]float64{
		0.01: MinZoom,
		5:    MaxZoom,
		1.3:  1.3,
		0:    DefaultZoom,
		-2:   DefaultZoom,
	}
	for in, want := range cases {
		if got := ClampZoom(in); got != want {
			t.Errorf("ClampZoom(%v) = %v, want %v", in, got, want)
		}
	}
	if got := ClampZoom(math.NaN()); got != DefaultZoom {
		t.Errorf("NaN -> %v", got)
	}
}

func TestZoomAtClamps(t *testing.T) {
	cam := ZoomAt(Point{X: 10, Y: 10}, Point{}, Camera{Zoom: 1}, 50)
	if cam.Zoom != MaxZoom {
		t.Errorf("zoom = %v", cam.Zoom)
	}
}

func TestClampWorld(t *testing.T) {
	p := ClampWorld(Point{X: SurfaceSize, Y: -SurfaceSize})
	if p.X != SurfaceSize/2 || p.Y != -SurfaceSize/2 {
		t.Errorf("got %+v", p)
	}
}
