//go:build !cgo || !hyperscan

package matcher

import "github.com/praetorian-inc/sieve/pkg/types"

// Compile builds the portable automaton database (no CGO required).
//
// For Hyperscan, build with CGO_ENABLED=1 and -tags=hyperscan.
func Compile(patterns []types.Pattern) (Database, error) {
	db, err := NewAutomaton(patterns)
	if err != nil {
		return nil, err
	}
	return db, nil
}
