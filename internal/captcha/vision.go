package captcha

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// visionInstruction keeps the model from wrapping the answer in prose.
const visionInstruction = "extract the text, return only the text"

// GeminiSolver reads challenge images with the Gemini vision API.
type GeminiSolver struct {
	client *genai.Client
	model  string
}

// NewGeminiSolver connects to the Gemini API. model names the vision-capable
// model to query, e.g. "gemini-2.0-flash".
func NewGeminiSolver(ctx context.Context, apiKey, model string) (*GeminiSolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision solver requires an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &GeminiSolver{client: client, model: model}, nil
}

// Solve sends the image to the model and returns the extracted text.
func (g *GeminiSolver) Solve(ctx context.Context, image []byte) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(image, "image/png"),
		genai.NewPartFromText(visionInstruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", fmt.Errorf("vision service returned no text")
	}
	return text, nil
}
