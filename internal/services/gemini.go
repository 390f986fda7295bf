package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClient(ctx context.Context, apiKey, modelName, systemPrompt string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Close() {
	c.client.Close()
}

// Complete sends the message as the single user turn. The caller identity is
// not forwarded; Gemini has no per-end-user field.
func (c *GeminiClient) Complete(ctx context.Context, ownerID, message string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", &UpstreamError{
			Provider: "gemini",
			Status:   geminiStatus(err),
			Err:      errors.Wrap(err, "generating content"),
		}
	}

	if len(resp.Candidates) == 0 {
		return "", &UpstreamError{Provider: "gemini", Err: errors.New("no completion candidates")}
	}
	if fr := resp.Candidates[0].FinishReason; fr != genai.FinishReasonStop {
		slog.Warn("gemini candidate finished early", "finish_reason", fr.String(), "owner", ownerID)
	}

	reply := extractFirstText(resp)
	if strings.TrimSpace(reply) == "" {
		return "", &UpstreamError{Provider: "gemini", Err: errors.New("empty completion text")}
	}
	return reply, nil
}

// extractFirstText joins the text parts of the first candidate only.
func extractFirstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}

func geminiStatus(err error) int {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return code
		}
	}
	return 0
}
