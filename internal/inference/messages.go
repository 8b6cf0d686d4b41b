package inference

import (
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/assets"
	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/resolver"
)

// Request constants shared by every Anthropic model call on Bedrock.
const (
	AnthropicVersion = "bedrock-2023-05-31"
	MaxTokens        = 4096
	ContentTypeJSON  = "application/json"

	// imageMediaType is declared for every image block regardless of the
	// source format.
	imageMediaType = "image/jpeg"
)

// ImageSource is the inline payload of an image content block.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is one element of a message's content: either text or an image.
type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// RequestBody is the JSON body sent to InvokeModel, and the prompt record of
// each batch input line.
type RequestBody struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
}

type responseBody struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func newRequestBody(messages []Message) RequestBody {
	return RequestBody{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        MaxTokens,
		Messages:         messages,
	}
}

func textBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

func imageBlock(data string) ContentBlock {
	return ContentBlock{
		Type: "image",
		Source: &ImageSource{
			Type:      "base64",
			MediaType: imageMediaType,
			Data:      resolver.StripDataURIHeader(data),
		},
	}
}

// BuildAnalysisRequest builds the single user message for an analysis: one
// image block per resolved image, in order, followed by exactly one text
// block carrying the instructions, the ad details, the guidelines (when
// non-empty), and the output schema.
//
// Earlier versions fetched the platform guidelines but left them out of the
// prompt, so the text block held only the instructions, the ad details and
// the schema. An empty guidelines argument still produces exactly that block.
//
// Video and audio are accepted but not sent to the model.
func BuildAnalysisRequest(details compliance.AdDetails, guidelines string, images []string, video, audio compliance.MediaRefs) []Message {
	content := make([]ContentBlock, 0, len(images)+1)
	for _, img := range images {
		content = append(content, imageBlock(img))
	}

	if len(video) > 0 || len(audio) > 0 {
		log.Debug().
			Int("video", len(video)).
			Int("audio", len(audio)).
			Msg("Video and audio references are not included in the analysis request")
	}

	content = append(content, textBlock(assets.RenderAnalysisPrompt(details.String(), details.Platform(), guidelines)))
	return []Message{{Role: "user", Content: content}}
}

func buildFixRequest(originalAnalysis, adContent string) []Message {
	return []Message{{
		Role:    "user",
		Content: []ContentBlock{textBlock(assets.RenderFixPrompt(originalAnalysis, adContent))},
	}}
}
