package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes an embedding to little-endian packed float64 bytes.
// Both backends store vectors in this format (Postgres additionally mirrors
// them into a pgvector column when the extension is available).
func EncodeVector(vec []float64) []byte {
	if len(vec) == 0 {
		return nil
	}

	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeVector deserializes little-endian packed float64 bytes.
func DecodeVector(buf []byte) ([]float64, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("invalid vector buffer size %d", len(buf))
	}

	vec := make([]float64, len(buf)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec, nil
}
