package jobs

import (
	"strings"
)

// ParseRoute extracts the job name and action from a URL path like
// /api/batch/{name}/{action}. apiPrefix should be like "/api/batch/".
// Returns ok=false when the path has no action segment or the name is invalid.
func ParseRoute(path, apiPrefix string) (jobName, action string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", "", false
	}

	jobName = parts[0]
	if !ValidName(jobName) {
		return "", "", false
	}
	return jobName, parts[1], true
}
