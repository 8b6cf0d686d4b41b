// Package main provides the Lambda entry point for the ad compliance API.
//
// It serves the httpapi routes behind API Gateway (HTTP API payload v2):
// interactive analysis and fix calls, batch job submission and polling,
// and asset uploads into the staging bucket.
package main

import (
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/fpang/ad-compliance-analyzer/internal/httpapi"
	"github.com/fpang/ad-compliance-analyzer/internal/lambdaboot"
	"github.com/fpang/ad-compliance-analyzer/internal/logging"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

var app *lambdaboot.App

func init() {
	initStart := time.Now()
	logging.Init()

	app = lambdaboot.Bootstrap()

	app.StartupLog("api-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Log()
}

func main() {
	var jobs store.JobStore
	if app.Jobs != nil {
		jobs = app.Jobs
	}

	srv := httpapi.New(app.Service, app.Storage.Objects, jobs, httpapi.Config{
		Bucket:           app.Config.Bucket,
		MetricsNamespace: app.Config.MetricsNamespace,
	})

	adapter := httpadapter.NewV2(srv.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
