// Package vector holds the float32 vector math shared by the embedding
// client and the stores: distances, normalization and a binary codec.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Metric is a distance function name.
type Metric string

const (
	L2     Metric = "l2"
	Cosine Metric = "cosine"
)

// ParseMetric accepts "l2" and "cosine".
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case L2, Cosine:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// Distance returns the distance between a and b under m. Lengths must match.
func (m Metric) Distance(a, b []float32) float64 {
	if m == Cosine {
		return CosineDistance(a, b)
	}
	return L2Distance(a, b)
}

// L2Distance is the Euclidean distance.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance is 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Norm is the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit length. The zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Encode packs v as little-endian float32s.
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// Decode is the inverse of Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
