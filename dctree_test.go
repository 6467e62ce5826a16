package dctree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soypat/dctree/eval"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

func sphereTape(radius float32) *tape.Tape {
	var b tape.Builder
	x := b.X()
	y := b.Y()
	z := b.Z()
	x2 := b.Unary(tape.OpSquare, x)
	y2 := b.Unary(tape.OpSquare, y)
	z2 := b.Unary(tape.OpSquare, z)
	sum := b.Binary(tape.OpAdd, x2, b.Binary(tape.OpAdd, y2, z2))
	r2 := b.Const(radius * radius)
	root := b.Binary(tape.OpSub, sum, r2)
	return b.Finish(root)
}

func TestRenderProducesWatertightishMeshForSphere(t *testing.T) {
	f := sphereTape(0.5)
	bounds := ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}

	var samples []float32
	m, err := Render(eval.NewCPUFactory(), f, bounds, Config{
		MinFeature: 0.1,
		MaxErr:     1e-5,
		Workers:    4,
		ProgressCallback: func(v float32) {
			samples = append(samples, v)
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.Triangles, "a sphere inside the bounds must produce triangles")
	require.Greater(t, len(m.Vertices), 1, "vertex 0 is reserved; real vertices start at 1")

	require.NotEmpty(t, samples)
	require.Equal(t, float32(0), samples[0])
	require.Equal(t, float32(3), samples[len(samples)-1])

	for _, tr := range m.Triangles {
		for _, idx := range tr {
			require.Less(t, int(idx), len(m.Vertices))
		}
	}
}

func TestRenderEmptyRegionProducesNoTriangles(t *testing.T) {
	f := sphereTape(0.5)
	bounds := ms3.Box{Min: ms3.Vec{X: 10, Y: 10, Z: 10}, Max: ms3.Vec{X: 11, Y: 11, Z: 11}}

	m, err := Render(eval.NewCPUFactory(), f, bounds, Config{MinFeature: 0.1, MaxErr: 1e-5, Workers: 2})
	require.NoError(t, err)
	require.Empty(t, m.Triangles)
}

func TestRenderRejectsInvalidRegion(t *testing.T) {
	f := sphereTape(0.5)
	bounds := ms3.Box{Min: ms3.Vec{X: 1, Y: -1, Z: -1}, Max: ms3.Vec{X: -1, Y: 1, Z: 1}}

	_, err := Render(eval.NewCPUFactory(), f, bounds, Config{MinFeature: 0.1})
	require.Error(t, err)
	require.True(t, IsInvalidRegion(err))
}

func TestRenderHonorsPreSetCancelFlag(t *testing.T) {
	f := sphereTape(0.5)
	bounds := ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}

	cancel := NewCancelFlag()
	cancel.Store(true)
	m, err := Render(eval.NewCPUFactory(), f, bounds, Config{MinFeature: 0.1, MaxErr: 1e-5, Cancel: cancel})
	require.Error(t, err)
	require.True(t, IsCancelled(err))
	require.Empty(t, m.Triangles)
}

func TestRenderRejectsUnimplementedAlgorithm(t *testing.T) {
	f := sphereTape(0.5)
	bounds := ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}

	_, err := Render(eval.NewCPUFactory(), f, bounds, Config{MinFeature: 0.1, Algorithm: IsoSimplex})
	require.Error(t, err)
	require.True(t, IsUnsupportedAlgorithm(err))
}
