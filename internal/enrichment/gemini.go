package enrichment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Identifier interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Identifier instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiSchema()

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// geminiSchema converts the shared response fields into a genai schema
func geminiSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(responseFields))
	for _, f := range responseFields {
		props[f.name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.description,
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   requiredFields(),
	}
}

// Identify asks Gemini for the likely product behind a barcode
func (g *Gemini) Identify(ctx context.Context, code, format string) (*ProductInfo, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(code, format)))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	info, err := parseProductJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing product info: %w", err)
	}

	return info, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
