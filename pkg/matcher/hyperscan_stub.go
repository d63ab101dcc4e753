//go:build !cgo || !hyperscan

package matcher

import (
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// NewHyperscan stub for builds without Hyperscan (non-CGO or missing hyperscan tag).
func NewHyperscan(patterns []types.Pattern) (Database, error) {
	return nil, &CompileError{
		Index:  -1,
		Reason: "Hyperscan requires CGO (build with CGO_ENABLED=1 and -tags=hyperscan)",
		Err:    fmt.Errorf("hyperscan unavailable"),
	}
}
