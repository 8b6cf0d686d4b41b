// Package cli holds helpers shared by the adcheck command-line tool:
// application bootstrap, interactive prompts, request file loading, and
// output formatting.
package cli

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/lambdaboot"
	"github.com/fpang/ad-compliance-analyzer/internal/logging"
)

// InitApp initializes logging and builds the application from the
// environment. Exits fatally on configuration errors.
func InitApp(name string) *lambdaboot.App {
	start := time.Now()
	logging.Init()

	app := lambdaboot.Bootstrap()
	log.Debug().
		Str("command", name).
		Str("model", app.Service.ModelID()).
		Str("storage", app.Config.StorageBackend).
		Dur("init", time.Since(start)).
		Msg("adcheck initialized")
	return app
}
