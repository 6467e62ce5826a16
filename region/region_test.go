package region

import (
	"testing"

	"github.com/soypat/glgl/math/ms3"
)

func TestSubdivideChildOrder(t *testing.T) {
	r := Region3{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}, Level: 3}
	children := r.Subdivide()
	half := ms3.Scale(0.5, r.Size())
	for i, c := range children {
		want := ms3.Add(r.Min, ms3.Vec{X: bit(i, 0) * half.X, Y: bit(i, 1) * half.Y, Z: bit(i, 2) * half.Z})
		if c.Min != want {
			t.Errorf("child %d: got lower %+v, want %+v", i, c.Min, want)
		}
		if c.Level != r.Level-1 {
			t.Errorf("child %d: got level %d, want %d", i, c.Level, r.Level-1)
		}
	}
}

func TestParentInvertsSubdivide(t *testing.T) {
	r := Region3{Min: ms3.Vec{X: -2, Y: 3, Z: 0}, Max: ms3.Vec{X: 6, Y: 7, Z: 4}, Level: 5}
	for i, c := range r.Subdivide() {
		got := c.Parent(i)
		if got.Min != r.Min || got.Max != r.Max || got.Level != r.Level {
			t.Errorf("child %d parent: got %+v, want %+v", i, got, r)
		}
	}
}

func TestNewFromBoundsLevelCount(t *testing.T) {
	tests := []struct {
		name       string
		bb         ms3.Box
		minFeature float32
		wantLevel  int
	}{
		{"unit cube at 0.5", ms3.Box{Min: ms3.Vec{}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}, 0.5, 1},
		{"unit cube at 0.25", ms3.Box{Min: ms3.Vec{}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}, 0.25, 2},
		{"long box", ms3.Box{Min: ms3.Vec{}, Max: ms3.Vec{X: 8, Y: 1, Z: 1}}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFromBounds(tt.bb, tt.minFeature)
			if err != nil {
				t.Fatal(err)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("got level %d, want %d", got.Level, tt.wantLevel)
			}
			leafEdge := got.Size().X / float32(int(1)<<uint(got.Level))
			if leafEdge > tt.minFeature+1e-6 {
				t.Errorf("leaf edge %g exceeds min_feature %g", leafEdge, tt.minFeature)
			}
		})
	}
}

func TestNewFromBoundsRejectsInvalid(t *testing.T) {
	_, err := NewFromBounds(ms3.Box{Min: ms3.Vec{X: 1}, Max: ms3.Vec{X: -1}}, 0.1)
	if err == nil || !IsInvalidRegion(err) {
		t.Fatalf("expected invalid region error, got %v", err)
	}
	_, err = NewFromBounds(ms3.Box{Min: ms3.Vec{}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}, 0)
	if err == nil {
		t.Fatal("expected error for non-positive min_feature")
	}
}

func TestHalfDiagonal(t *testing.T) {
	r := Region3{Min: ms3.Vec{}, Max: ms3.Vec{X: 2, Y: 2, Z: 2}}
	got := r.HalfDiagonal()
	want := float32(1.7320508) // sqrt(3)
	if got < want-1e-4 || got > want+1e-4 {
		t.Errorf("got %g, want %g", got, want)
	}
}
