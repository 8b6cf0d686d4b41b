// Package resolver turns ad media references and platform names into the
// inline data and guideline text the analysis prompt needs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
)

// KnownPlatforms lists the platforms with a published guideline file.
var KnownPlatforms = []string{"facebook", "instagram", "youtube"}

// Resolver fetches media and guideline text from object storage.
type Resolver struct {
	store            storage.ObjectStore
	guidelinesBucket string
}

// New creates a Resolver reading guideline files from guidelinesBucket.
func New(store storage.ObjectStore, guidelinesBucket string) *Resolver {
	return &Resolver{store: store, guidelinesBucket: guidelinesBucket}
}

// ResolveMedia returns one base64 payload per reference, in order. Locators
// are downloaded and encoded; inline payloads pass through with any data-URI
// header removed. The first fetch failure is returned; nothing is dropped.
func (r *Resolver) ResolveMedia(ctx context.Context, refs compliance.MediaRefs) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(refs))
	for i, ref := range refs {
		if !storage.IsLocator(ref) {
			out = append(out, StripDataURIHeader(ref))
			continue
		}

		loc, err := storage.ParseLocator(ref)
		if err != nil {
			return nil, fmt.Errorf("media %d: %w", i, err)
		}
		encoded, err := storage.GetBase64(ctx, r.store, loc)
		if err != nil {
			return nil, fmt.Errorf("media %d (%s): %w", i, loc, err)
		}
		log.Debug().
			Int("index", i).
			Str("locator", loc.String()).
			Int("encodedLength", len(encoded)).
			Msg("Resolved media from storage")
		out = append(out, encoded)
	}
	return out, nil
}

// ResolveGuidelines returns the policy text for platform. Guidelines are
// best-effort: any fetch error is logged and an empty string returned.
func (r *Resolver) ResolveGuidelines(ctx context.Context, platform string) string {
	loc := r.GuidelineLocator(platform)
	text, err := storage.GetText(ctx, r.store, loc)
	if err != nil {
		log.Warn().
			Err(err).
			Str("platform", platform).
			Str("locator", loc.String()).
			Msg("Error fetching guidelines, continuing without them")
		return ""
	}
	log.Debug().Str("platform", platform).Int("length", len(text)).Msg("Guidelines loaded")
	return text
}

// GuidelineLocator returns guidelines/<platform>.txt in the guidelines bucket.
func (r *Resolver) GuidelineLocator(platform string) storage.Locator {
	return storage.Locator{
		Bucket: r.guidelinesBucket,
		Key:    "guidelines/" + strings.ToLower(platform) + ".txt",
	}
}

// GuidelineLocators returns the guideline files of every known platform.
func (r *Resolver) GuidelineLocators() []storage.Locator {
	locs := make([]storage.Locator, 0, len(KnownPlatforms))
	for _, p := range KnownPlatforms {
		locs = append(locs, r.GuidelineLocator(p))
	}
	return locs
}

// StripDataURIHeader removes a "data:<type>;base64," header, returning the
// bare payload.
func StripDataURIHeader(data string) string {
	if _, payload, found := strings.Cut(data, "base64,"); found {
		return payload
	}
	return data
}
