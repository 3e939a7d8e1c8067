package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	jsoniter "github.com/json-iterator/go"
)

const chatPath = "/api/chat"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProxyClient calls the completion proxy over HTTP. Every failure is returned
// as *model.CompletionError.
type ProxyClient struct {
	chatURL    string
	httpClient *http.Client
}

func NewProxyClient(baseURL string, httpClient *http.Client) (*ProxyClient, error) {
	chatURL, err := url.JoinPath(baseURL, chatPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat url from %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ProxyClient{
		chatURL:    chatURL,
		httpClient: httpClient,
	}, nil
}

func (p *ProxyClient) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.ChatResponse{}, model.NewCompletionError(model.ErrorKindMalformed, fmt.Errorf("failed to marshal request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(body))
	if err != nil {
		return model.ChatResponse{}, model.NewCompletionError(model.ErrorKindTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return model.ChatResponse{}, model.NewCompletionError(model.ErrorKindTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ChatResponse{}, model.NewCompletionError(model.ErrorKindTransport, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		kind := model.ErrorKind(resp.Header.Get(model.HeaderErrorKind))
		if kind == model.ErrorKindNone {
			kind = model.ErrorKindUpstream
		}
		return model.ChatResponse{}, model.NewCompletionError(kind, fmt.Errorf("proxy responded %s", resp.Status))
	}
	var chatResp model.ChatResponse
	if err = json.Unmarshal(raw, &chatResp); err != nil {
		return model.ChatResponse{}, model.NewCompletionError(model.ErrorKindMalformed, fmt.Errorf("failed to decode response: %w", err))
	}
	return chatResp, nil
}
