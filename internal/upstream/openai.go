package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iamvkosarev/ai-chat-proxy/config"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	"github.com/sashabaranov/go-openai"
)

// OpenAI sends single non-streaming chat completions to Azure OpenAI when an
// endpoint is configured, or to an OpenAI compatible API otherwise.
type OpenAI struct {
	httpClient *http.Client
}

func NewOpenAI(httpClient *http.Client) *OpenAI {
	return &OpenAI{
		httpClient: httpClient,
	}
}

func (o *OpenAI) CreateCompletion(
	ctx context.Context,
	cfg config.OpenAI,
	engine string,
	messages []openai.ChatCompletionMessage,
) (string, error) {
	c := openai.NewClientWithConfig(o.clientConfig(cfg))
	req := openai.ChatCompletionRequest{
		Model:    engine,
		N:        1,
		Messages: messages,
	}
	return PolicyFromConfig(cfg).Do(
		ctx, func(ctx context.Context) (string, error) {
			resp, err := c.CreateChatCompletion(ctx, req)
			if err != nil {
				return "", classify(err)
			}
			if len(resp.Choices) == 0 {
				return "", model.NewCompletionError(model.ErrorKindMalformed, fmt.Errorf("no choices: %w", model.ErrEmptyCompletion))
			}
			content := resp.Choices[0].Message.Content
			if strings.TrimSpace(content) == "" {
				return "", model.NewCompletionError(model.ErrorKindMalformed, model.ErrEmptyCompletion)
			}
			return content, nil
		},
	)
}

func (o *OpenAI) clientConfig(cfg config.OpenAI) openai.ClientConfig {
	var clientConfig openai.ClientConfig
	if cfg.Endpoint != "" {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		clientConfig.APIVersion = cfg.APIVersion
		clientConfig.AzureModelMapperFunc = func(deployment string) string {
			return deployment
		}
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}
	if o.httpClient != nil {
		clientConfig.HTTPClient = o.httpClient
	}
	return clientConfig
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return model.NewCompletionError(model.ErrorKindUpstream, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return model.NewCompletionError(model.ErrorKindUpstream, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return model.NewCompletionError(model.ErrorKindMalformed, err)
	}
	return model.NewCompletionError(model.ErrorKindTransport, err)
}
