package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FeatureVector is the fixed-length dense representation of one recipe.
type FeatureVector []float64

// Rejection reasons reported by Check.
const (
	RejectWrongDimension = "wrong_dimension"
	RejectNonFinite      = "non_finite"
	RejectZero           = "zero_vector"
	// RejectUnnormalizable marks a finite vector whose length is not.
	RejectUnnormalizable = "unnormalizable"
)

// Check reports why v is unusable at dimension dim, or "" when it is valid.
func (v FeatureVector) Check(dim int) string {
	if len(v) != dim || dim == 0 {
		return RejectWrongDimension
	}
	nonZero := false
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return RejectNonFinite
		}
		if x != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return RejectZero
	}
	return ""
}

// Norm is the Euclidean length, computed with scaling so large finite
// components do not overflow.
func (v FeatureVector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Normalized returns a unit-length copy of v, or false when v has zero norm.
func (v FeatureVector) Normalized() (FeatureVector, bool) {
	n := v.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, false
	}
	out := make(FeatureVector, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out, true
}

// Dot assumes equal lengths.
func (v FeatureVector) Dot(o FeatureVector) float64 {
	var sum float64
	for i := range v {
		sum += v[i] * o[i]
	}
	return sum
}
