package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeEmbedding serializes a vector as little-endian float32 bytes, the
// layout sqlite-vec and compatible tooling expect.
func encodeEmbedding(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding deserializes a little-endian float32 BLOB.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}

// padEmbedding zero-pads a vector to the store dimension. Callers must
// reject vectors wider than the store before padding.
func padEmbedding(vector []float32, dimension int) []float32 {
	if len(vector) >= dimension {
		return vector
	}
	padded := make([]float32, dimension)
	copy(padded, vector)
	return padded
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero-padded tails contribute nothing, so vectors of different logical
// widths compare correctly once stored at the same physical width.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
