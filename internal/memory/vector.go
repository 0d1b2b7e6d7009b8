package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Embeddings are stored as a little-endian uint32 dimension followed by the
// float32 values.
const dimHeader = 4

func encodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("encode embedding: empty vector")
	}
	blob := make([]byte, dimHeader+4*len(vec))
	binary.LittleEndian.PutUint32(blob, uint32(len(vec)))
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("encode embedding: non-finite value at %d", i)
		}
		binary.LittleEndian.PutUint32(blob[dimHeader+4*i:], math.Float32bits(v))
	}
	return blob, nil
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) < dimHeader {
		return nil, fmt.Errorf("decode embedding: short blob (%d bytes)", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob))
	if dim <= 0 || len(blob) != dimHeader+4*dim {
		return nil, fmt.Errorf("decode embedding: dimension %d does not match %d bytes", dim, len(blob))
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[dimHeader+4*i:]))
	}
	return vec, nil
}

// cosine returns the cosine similarity of a and b, or false when the vectors
// are not comparable.
func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
