package matcher

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// validatePatterns checks the constraints shared by every backend.
func validatePatterns(patterns []types.Pattern) error {
	if len(patterns) == 0 {
		return &CompileError{Index: -1, Reason: ErrNoPatterns.Error(), Err: ErrNoPatterns}
	}

	seen := make(map[uint]int, len(patterns))
	for i, p := range patterns {
		if first, ok := seen[p.ID]; ok {
			return &CompileError{
				Index:  i,
				ID:     p.ID,
				Reason: fmt.Sprintf("identifier already used by pattern %d", first),
				Err:    ErrDuplicateID,
			}
		}
		seen[p.ID] = i

		if p.Text == "" {
			return &CompileError{Index: i, ID: p.ID, Reason: ErrEmptyPattern.Error(), Err: ErrEmptyPattern}
		}
		// Records are newline-delimited, so these bytes can never be part of a match.
		if strings.ContainsAny(p.Text, "\x00\n") {
			return &CompileError{
				Index:  i,
				ID:     p.ID,
				Reason: "pattern contains NUL or newline",
				Err:    ErrInvalidPattern,
			}
		}
	}
	return nil
}

// fingerprint hashes the backend name and pattern list in compiled order.
func fingerprint(backend string, patterns []types.Pattern) uint64 {
	d := xxhash.New()
	d.WriteString(backend)
	var buf [8]byte
	for _, p := range patterns {
		binary.LittleEndian.PutUint64(buf[:], uint64(p.ID))
		d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(p.Flags))
		d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(len(p.Text)))
		d.Write(buf[:])
		d.WriteString(p.Text)
	}
	return d.Sum64()
}

// bitsetWords returns the number of uint64 words needed for n bits.
func bitsetWords(n int) int {
	return (n + 63) / 64
}
