package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/rs/zerolog/log"
)

// BatchPrefix is the prefix of generated batch job names.
const BatchPrefix = "adbatch-"

// jobNamePattern matches the names Bedrock accepts for model invocation jobs.
var jobNamePattern = regexp.MustCompile(`^[a-zA-Z0-9](-*[a-zA-Z0-9+\-.])*$`)

// maxJobNameLen is Bedrock's limit on model invocation job names.
const maxJobNameLen = 63

// GenerateID creates a new cryptographically random job ID with the given prefix.
// The prefix should include a trailing dash, e.g. "adbatch-".
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s job ID", prefix)
	}
	return prefix + hex.EncodeToString(b)
}

// ValidName reports whether name can be used as a batch job name. Job names
// also become storage key segments, so slashes are never allowed.
func ValidName(name string) bool {
	return len(name) <= maxJobNameLen && jobNamePattern.MatchString(name)
}
