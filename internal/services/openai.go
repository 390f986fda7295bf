package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

func NewOpenAIClient(apiKey, baseURL, model, systemPrompt string) *OpenAIClient {
	openAIConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		openAIConfig.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(openAIConfig),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, ownerID, message string) (string, error) {
	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		User: ownerID,
	}

	response, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", &UpstreamError{
			Provider: "openai",
			Status:   openAIStatus(err),
			Err:      errors.Wrap(err, "creating chat completion"),
		}
	}

	if len(response.Choices) == 0 {
		return "", &UpstreamError{Provider: "openai", Err: errors.Errorf("ChatCompletionResponse returned no choice (id %s)", response.ID)}
	}

	reply := response.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", &UpstreamError{
			Provider: "openai",
			Err:      errors.Errorf("empty completion (finish reason %q)", response.Choices[0].FinishReason),
		}
	}
	return reply, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
