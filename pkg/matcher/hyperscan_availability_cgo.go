//go:build cgo && hyperscan

package matcher

// HyperscanAvailable returns true when Hyperscan is available (CGO build with hyperscan tag).
func HyperscanAvailable() bool {
	return true
}
