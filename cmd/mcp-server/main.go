// Package main runs the ad compliance analyzer as an MCP server over stdio,
// so assistants can analyze ads, request fixes, and drive batch jobs as tools.
//
// Stdout carries the protocol; logs go to stderr.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/lambdaboot"
	"github.com/fpang/ad-compliance-analyzer/internal/logging"
)

func main() {
	initStart := time.Now()
	logging.Init()

	app := lambdaboot.Bootstrap()
	app.StartupLog("mcp-server", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Log()

	server := newServer(app.Service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("MCP server running on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server error")
	}
}
