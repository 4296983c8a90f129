package graph

import (
	"math"
	"sync"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Transformation is an immutable local transformation attached to a child
// edge. Its content hash is computed on first use and never again. A nil
// *Transformation is the identity.
type Transformation struct {
	m sdf.M44

	once sync.Once
	hash uint64
}

var identityHash = HashMatrix(sdf.Identity3d())

// NewTransformation wraps an affine matrix.
func NewTransformation(m sdf.M44) *Transformation {
	return &Transformation{m: m}
}

// Translation returns a pure translation.
func Translation(v v3.Vec) *Transformation {
	return NewTransformation(sdf.Translate3d(v))
}

// TRS builds translate * rotateZ * rotateY * rotateX * scale. Rotation angles
// are in degrees.
func TRS(translate, rotateDeg, scale v3.Vec) *Transformation {
	m := sdf.Translate3d(translate).
		Mul(sdf.RotateZ(rotateDeg.Z * math.Pi / 180)).
		Mul(sdf.RotateY(rotateDeg.Y * math.Pi / 180)).
		Mul(sdf.RotateX(rotateDeg.X * math.Pi / 180)).
		Mul(sdf.Scale3d(scale))
	return NewTransformation(m)
}

// Matrix returns the local matrix.
func (t *Transformation) Matrix() sdf.M44 {
	if t == nil {
		return sdf.Identity3d()
	}
	return t.m
}

// IsIdentity reports whether t leaves every point where it is.
func (t *Transformation) IsIdentity() bool {
	return t == nil || t.Hash() == identityHash
}

// Hash returns the content hash of the matrix.
func (t *Transformation) Hash() uint64 {
	if t == nil {
		return identityHash
	}
	t.once.Do(func() { t.hash = HashMatrix(t.m) })
	return t.hash
}

// HashMatrix hashes an affine matrix through the images of the origin and
// the three unit axes, which determine it completely.
func HashMatrix(m sdf.M44) uint64 {
	w := NewHashWriter()
	w.Vec(m.MulPosition(v3.Vec{}))
	w.Vec(m.MulPosition(v3.Vec{X: 1}))
	w.Vec(m.MulPosition(v3.Vec{Y: 1}))
	w.Vec(m.MulPosition(v3.Vec{Z: 1}))
	return w.Sum()
}
