// Package main provides the Lambda entry point that reacts to Bedrock batch
// inference job state changes delivered by EventBridge.
//
// On a terminal state it updates the job registry. A completed job also has
// its results collected, its output objects tagged for cost allocation, and
// a batch.results.collected event published.
package main

import (
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/fpang/ad-compliance-analyzer/internal/lambdaboot"
	"github.com/fpang/ad-compliance-analyzer/internal/logging"
)

var proc *processor

func init() {
	initStart := time.Now()
	logging.Init()

	app := lambdaboot.Bootstrap()
	proc = newProcessor(app)

	app.StartupLog("batch-events-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Log()
}

func main() {
	lambda.Start(proc.handle)
}
