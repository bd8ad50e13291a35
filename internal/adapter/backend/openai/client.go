// Package openai drives an OpenAI-compatible chat completions server, such as a
// vLLM deployment, as the inference backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"npcgateway/internal/app/ports"

	openai "github.com/sashabaranov/go-openai"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai backend: model is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{client: openai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

// Generate sends the system prompt and the user part as two chat messages.
// Repetition penalty has no field in the chat completions API and is not sent.
func (c *Client) Generate(ctx context.Context, in ports.BackendRequest) (ports.BackendReply, error) {
	user := in.UserPrompt
	if user == "" {
		user = in.SceneReport
	}
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: in.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: in.Sampling.MaxTokens,
		Stop:      in.Sampling.Stop,
	}
	if t := in.Sampling.Temperature; t != nil {
		req.Temperature = float32(*t)
	}
	if p := in.Sampling.TopP; p != nil {
		req.TopP = float32(*p)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return ports.BackendReply{}, fmt.Errorf("%w: status %d: %s", ports.ErrBackend, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return ports.BackendReply{}, fmt.Errorf("%w: %v", ports.ErrBackend, err)
	}
	if len(resp.Choices) == 0 {
		return ports.BackendReply{}, fmt.Errorf("%w: no choices returned", ports.ErrBackend)
	}

	msg := resp.Choices[0].Message
	text := msg.Content
	// servers with a reasoning parser split the thinking out; fold it back so the
	// extractor reports it alongside the decision
	if rc := strings.TrimSpace(msg.ReasoningContent); rc != "" {
		text = "<think>" + rc + "</think>" + text
	}
	return ports.BackendReply{Text: text}, nil
}
