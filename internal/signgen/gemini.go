// Package signgen draws instructional sign language illustrations for
// what the conversation partner said.
package signgen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Common errors
var (
	ErrNoAPIKey = errors.New("gemini api key not configured")
	ErrNoImage  = errors.New("model returned no image")
	ErrDisabled = errors.New("sign generation disabled")
)

// DefaultModel is the image model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image"

// Image is a generated illustration.
type Image struct {
	Text     string `json:"text"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// DataURL encodes the image for an <img> src.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Generator produces an illustration for text.
type Generator interface {
	Generate(ctx context.Context, text string) (Image, error)
}

// Prompt is the instruction sent to the image model.
func Prompt(text string) string {
	return fmt.Sprintf("A clear, professional instructional illustration of the American Sign Language (ASL) sign for the word or phrase: %q. "+
		"The background should be a clean, neutral studio setting. Focus on hands and upper body. High quality, medical-grade clarity.", text)
}

// GeminiGenerator generates illustrations with a Gemini image model.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator using apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate asks the model for a square illustration of text.
func (g *GeminiGenerator) Generate(ctx context.Context, text string) (Image, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: "1:1"},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: []*genai.Part{genai.NewPartFromText(Prompt(text))}, Role: "user"},
	}, cfg)
	if err != nil {
		return Image{}, fmt.Errorf("genai generate: %w", err)
	}
	return imageFromResponse(resp, text)
}

// imageFromResponse returns the first inline image of the first
// candidate.
func imageFromResponse(resp *genai.GenerateContentResponse, text string) (Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Image{}, ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return Image{Text: text, MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
		}
	}
	return Image{}, ErrNoImage
}
