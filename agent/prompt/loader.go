package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/system.txt
var systemRaw string

// System returns the fixed agent instructions. Safe to call concurrently;
// the embed is compile-time and trimming is cheap.
func System() string {
	return strings.TrimSpace(systemRaw)
}

// SystemWithContext concatenates the fixed instructions with the context
// block built from the transcript and the connected nodes. This is the first
// message of every model request.
func SystemWithContext(contextBlock string) string {
	return System() + "\n\n" + contextBlock
}
