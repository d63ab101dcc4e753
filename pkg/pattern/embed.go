package pattern

import "embed"

// builtinPatternsFS embeds the built-in pattern sets.
//
//go:embed patterns/*.yml
var builtinPatternsFS embed.FS
