package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/ad-compliance-analyzer/internal/cli"
	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/inference"
)

// errViolation is returned by --fail-on-violation when the ad is not compliant.
var errViolation = errors.New("ad is not compliant")

var (
	requestFlag         string
	headlineFlag        string
	bodyFlag            string
	ctaFlag             string
	platformFlag        string
	fieldFlags          map[string]string
	imageFlags          []string
	videoFlags          []string
	audioFlags          []string
	failOnViolationFlag bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one ad for compliance",
	Long: `Analyze one ad and print the compliance report as JSON.

The ad is read from --request (a JSON file with ad_details, images, video,
and audio), or assembled from flags. With neither, the headline and body are
prompted for.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&requestFlag, "request", "r", "", "JSON request file")
	f.StringVar(&headlineFlag, "headline", "", "Ad headline")
	f.StringVar(&bodyFlag, "body", "", "Ad body copy")
	f.StringVar(&ctaFlag, "cta", "", "Call to action")
	f.StringVarP(&platformFlag, "platform", "p", "", "Platform whose guidelines apply (default facebook)")
	f.StringToStringVar(&fieldFlags, "field", nil, "Additional ad detail as key=value (repeatable)")
	f.StringSliceVar(&imageFlags, "image", nil, "Image as s3://bucket/key or base64 data (repeatable)")
	f.StringSliceVar(&videoFlags, "video", nil, "Video locator (repeatable)")
	f.StringSliceVar(&audioFlags, "audio", nil, "Audio locator (repeatable)")
	f.BoolVar(&failOnViolationFlag, "fail-on-violation", false, "Exit non-zero unless the ad is compliant")
	analyzeCmd.MarkFlagsMutuallyExclusive("request", "headline")
	analyzeCmd.MarkFlagsMutuallyExclusive("request", "body")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	req, err := analyzeRequestFromFlags()
	if err != nil {
		return err
	}
	if len(req.AdDetails) == 0 {
		req.AdDetails = promptAdDetails()
	}
	if len(req.AdDetails) == 0 {
		return errors.New("no ad details given")
	}
	if platformFlag != "" {
		req.AdDetails["platform"] = strings.ToLower(platformFlag)
	}

	app := cli.InitApp("analyze")
	result, err := app.Service.Analyze(cmd.Context(), req.AdDetails, req.Images, req.Video, req.Audio)
	if err != nil {
		return err
	}

	log.Info().
		Str("ad", req.AdDetails.Name()).
		Str("status", string(result.Compliance.Status)).
		Int("issues", len(result.Compliance.Issues)).
		Bool("approved", result.OverallStatus.IsApproved).
		Msg("Analysis complete")

	if err := cli.PrintJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if failOnViolationFlag && result.Compliance.Status != compliance.StatusCompliant {
		return fmt.Errorf("%w: %s", errViolation, result.Compliance.Status)
	}
	return nil
}

// analyzeRequestFromFlags loads --request, or assembles a request from the
// individual ad flags. Flag media is appended to file media.
func analyzeRequestFromFlags() (inference.AnalyzeRequest, error) {
	var req inference.AnalyzeRequest
	if requestFlag != "" {
		if err := cli.ReadJSONFile(requestFlag, &req); err != nil {
			return req, err
		}
	} else {
		req.AdDetails = buildAdDetails(headlineFlag, bodyFlag, ctaFlag, fieldFlags)
	}

	req.Images = append(req.Images, imageFlags...)
	req.Video = append(req.Video, videoFlags...)
	req.Audio = append(req.Audio, audioFlags...)
	return req, nil
}

// buildAdDetails assembles ad details from flag values. Empty values are
// omitted; the result is nil when nothing was given.
func buildAdDetails(headline, body, cta string, fields map[string]string) compliance.AdDetails {
	details := compliance.AdDetails{}
	for k, v := range fields {
		if k = strings.TrimSpace(k); k != "" {
			details[k] = v
		}
	}
	if headline != "" {
		details["headline"] = headline
	}
	if body != "" {
		details["body"] = body
	}
	if cta != "" {
		details["call_to_action"] = cta
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func promptAdDetails() compliance.AdDetails {
	in := bufio.NewReader(os.Stdin)
	headline := cli.PromptForText(in, os.Stderr, "Headline", "")
	body := cli.PromptForText(in, os.Stderr, "Body", "")
	return buildAdDetails(headline, body, "", nil)
}
