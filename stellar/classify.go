package stellar

import "strings"

// informational lists phrases the stellar CLI writes to stderr during a
// normal invoke (simulation, submission, signing). The CLI does not version
// this text; a new phrasing will be classified as an error until added here.
var informational = []string{
	"Simulation",
	"Send by",
	"Signing transaction:",
	"ℹ️",
}

// IsActualError reports whether stderr from the CLI describes a failure.
// Empty output is never an error. Output containing any informational
// phrase is treated as chatter, even if it also carries other text.
func IsActualError(stderr string) bool {
	if strings.TrimSpace(stderr) == "" {
		return false
	}
	for _, phrase := range informational {
		if strings.Contains(stderr, phrase) {
			return false
		}
	}
	return true
}
