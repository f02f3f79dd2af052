package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type OpenAITool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ModelRequest is one chat-completions turn.
type ModelRequest struct {
	APIKey   string
	Model    string
	Messages []OpenAIMessage
	Tools    []OpenAITool
}

// ModelClient returns the assistant message for one turn. A rate-limited
// call must return an error wrapping ErrRateLimited.
type ModelClient interface {
	ChatWithTools(ctx context.Context, req ModelRequest) (OpenAIMessage, error)
}

// OpenAIClient is the chat-completions client. The SDK retry loop is
// disabled; ChatService owns retries.
type OpenAIClient struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *OpenAIClient) ChatWithTools(ctx context.Context, req ModelRequest) (OpenAIMessage, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(c.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTP != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTP))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return OpenAIMessage{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return OpenAIMessage{}, err
	}
	if len(completion.Choices) == 0 {
		return OpenAIMessage{}, errors.New("openai: empty choices")
	}

	msg := completion.Choices[0].Message
	out := OpenAIMessage{Role: "assistant", Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}

func toOpenAIMessages(msgs []OpenAIMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)}
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toOpenAITools(tools []OpenAITool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}
