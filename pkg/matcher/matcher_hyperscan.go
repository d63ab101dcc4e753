//go:build cgo && hyperscan

package matcher

import "github.com/praetorian-inc/sieve/pkg/types"

// Compile builds a Hyperscan block database.
// This file is only compiled when CGO is enabled and the "hyperscan" build tag is set.
func Compile(patterns []types.Pattern) (Database, error) {
	db, err := NewHyperscan(patterns)
	if err != nil {
		return nil, err
	}
	return db, nil
}
