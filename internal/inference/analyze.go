package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/jsonutil"
)

// Analyze checks one ad against its platform's policies. Guidelines are
// best-effort; a media resolution failure, a model error, or a response that
// is not a valid report fails the whole call and no partial result is returned.
func (s *Service) Analyze(ctx context.Context, details compliance.AdDetails, images, video, audio compliance.MediaRefs) (*compliance.AnalysisResult, error) {
	start := time.Now()

	platform := details.Platform()
	guidelines := s.resolver.ResolveGuidelines(ctx, platform)

	resolved, err := s.resolver.ResolveMedia(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("error analyzing ad with Bedrock: %w", err)
	}

	messages := BuildAnalysisRequest(details, guidelines, resolved, video, audio)
	text, err := s.invoke(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("error analyzing ad with Bedrock: %w", err)
	}

	result, err := jsonutil.ParseJSON[compliance.AnalysisResult](text)
	if err != nil {
		return nil, fmt.Errorf("error analyzing ad with Bedrock: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("error analyzing ad with Bedrock: %w", err)
	}

	log.Info().
		Str("platform", platform).
		Str("status", string(result.Compliance.Status)).
		Int("images", len(resolved)).
		Int("issues", len(result.Compliance.Issues)).
		Bool("guidelines", guidelines != "").
		Dur("duration", time.Since(start)).
		Msg("Ad analysis complete")

	s.recorder("analyze").
		Since("AnalyzeLatencyMs", start).
		Count("AnalyzeCount").
		Property("platform", platform).
		Property("status", string(result.Compliance.Status)).
		Flush()

	if s.opts.Verdicts != nil {
		if err := s.opts.Verdicts.EmitAnalysisCompleted(ctx, details, &result); err != nil {
			log.Warn().Err(err).Msg("Failed to emit analysis verdict")
		}
	}
	return &result, nil
}

// Fix asks the model to revise ad content given a prior analysis. The model's
// text is returned as-is.
func (s *Service) Fix(ctx context.Context, originalAnalysis, adContent string) (string, error) {
	text, err := s.invoke(ctx, buildFixRequest(originalAnalysis, adContent))
	if err != nil {
		return "", fmt.Errorf("error fixing ad with Bedrock: %w", err)
	}

	log.Info().Int("responseLength", len(text)).Msg("Ad fix complete")
	s.recorder("fix").Count("FixCount").Flush()
	return text, nil
}
