// Package vectorstore holds what the embedding store backends share:
// the on-disk vector encoding and key validation.
//
// Backends live in sub-packages (filesystem, badger, bbolt, postgres) and
// all pass the conformance suite in storetest.
package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// Encode serialises a vector as little-endian float32 values.
func Encode(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode parses the output of Encode into a new slice.
func Decode(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes is not a multiple of 4", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}

// CheckKey rejects keys with a missing component or with characters that
// backends use as separators.
func CheckKey(key domain.EmbeddingKey) error {
	if key.IsZero() {
		return fmt.Errorf("%w: incomplete embedding key %q", domain.ErrInvalidInput, key)
	}
	for _, part := range []string{key.DocumentID, key.ChunkID} {
		if err := CheckID(part); err != nil {
			return err
		}
	}
	return nil
}

// CheckID rejects identifiers that are unsafe as path or key segments.
func CheckID(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("%w: identifier %q", domain.ErrInvalidInput, id)
	}
	return nil
}
