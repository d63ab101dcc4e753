//go:build !cgo || !hyperscan

package matcher

// HyperscanAvailable returns false when Hyperscan is not available (non-CGO build or missing hyperscan tag).
func HyperscanAvailable() bool {
	return false
}
