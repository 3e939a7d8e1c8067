package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/iamvkosarev/ai-chat-proxy/config"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	reply    string
	err      error
	engine   string
	cfg      config.OpenAI
	messages []openai.ChatCompletionMessage
}

func (f *fakeUpstream) CreateCompletion(
	_ context.Context,
	cfg config.OpenAI,
	engine string,
	messages []openai.ChatCompletionMessage,
) (string, error) {
	f.cfg = cfg
	f.engine = engine
	f.messages = messages
	return f.reply, f.err
}

type fakeExchangeLog struct {
	mu        sync.Mutex
	exchanges []model.Exchange
	err       error
}

func (f *fakeExchangeLog) Record(_ context.Context, exchange model.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, exchange)
	return f.err
}

func staticSettings(cfg config.OpenAI) func() config.OpenAI {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = config.DefaultSystemPrompt
	}
	if cfg.WebSearchPrompt == "" {
		cfg.WebSearchPrompt = config.DefaultWebSearchPrompt
	}
	return func() config.OpenAI {
		return cfg
	}
}

func helloRequest() model.ChatRequest {
	return model.ChatRequest{
		Messages: []model.WireMessage{{Role: "user", Content: "hi"}},
		Model:    "gpt-4o",
	}
}

func TestCompleteForwardsSingleTurn(t *testing.T) {
	upstream := &fakeUpstream{reply: "Hello!"}
	exchangeLog := &fakeExchangeLog{}
	completion := NewCompletionUsecase(
		CompletionUsecaseDeps{Upstream: upstream, ExchangeLog: exchangeLog},
		staticSettings(config.OpenAI{Engine: "prod-deployment", APIKey: "k"}),
	)

	reply, err := completion.Complete(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	assert.Equal(t, "prod-deployment", upstream.engine)
	require.Len(t, upstream.messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, upstream.messages[0].Role)
	assert.Equal(t, "You are a helpful assistant...", upstream.messages[0].Content)
	assert.Equal(t, openai.ChatCompletionMessage{Role: "user", Content: "hi"}, upstream.messages[1])

	require.Len(t, exchangeLog.exchanges, 1)
	exchange := exchangeLog.exchanges[0]
	assert.Equal(t, "prod-deployment", exchange.Engine)
	assert.Equal(t, "gpt-4o", exchange.Model)
	assert.Equal(t, "hi", exchange.Prompt)
	assert.Equal(t, "Hello!", exchange.Reply)
	assert.Equal(t, model.ErrorKindNone, exchange.ErrorKind)
	assert.NotEmpty(t, exchange.ID)
}

func TestCompleteFallsBackToRequestedModel(t *testing.T) {
	upstream := &fakeUpstream{reply: "ok"}
	completion := NewCompletionUsecase(CompletionUsecaseDeps{Upstream: upstream}, staticSettings(config.OpenAI{}))

	_, err := completion.Complete(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", upstream.engine)
}

func TestCompleteWebSearchExtendsSystemPrompt(t *testing.T) {
	upstream := &fakeUpstream{reply: "ok"}
	completion := NewCompletionUsecase(CompletionUsecaseDeps{Upstream: upstream}, staticSettings(config.OpenAI{}))

	req := helloRequest()
	req.WebSearch = true
	_, err := completion.Complete(context.Background(), req)
	require.NoError(t, err)
	system := upstream.messages[0].Content
	assert.True(t, strings.HasPrefix(system, config.DefaultSystemPrompt))
	assert.Contains(t, system, config.DefaultWebSearchPrompt)

	req.WebSearch = false
	_, err = completion.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSystemPrompt, upstream.messages[0].Content)
}

func TestCompleteUpstreamFailure(t *testing.T) {
	upstreamErr := model.NewCompletionError(model.ErrorKindUpstream, errors.New("deployment not found"))
	exchangeLog := &fakeExchangeLog{}
	completion := NewCompletionUsecase(
		CompletionUsecaseDeps{Upstream: &fakeUpstream{err: upstreamErr}, ExchangeLog: exchangeLog},
		staticSettings(config.OpenAI{}),
	)

	_, err := completion.Complete(context.Background(), helloRequest())
	require.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, model.ErrorKindUpstream, model.KindOf(err))
	require.Len(t, exchangeLog.exchanges, 1)
	assert.Equal(t, model.ErrorKindUpstream, exchangeLog.exchanges[0].ErrorKind)
}

func TestCompleteRejectsMalformedRequests(t *testing.T) {
	tests := []struct {
		name string
		req  model.ChatRequest
	}{
		{name: "no messages", req: model.ChatRequest{Model: "gpt-4o"}},
		{name: "unknown role", req: model.ChatRequest{Messages: []model.WireMessage{{Role: "tool", Content: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				upstream := &fakeUpstream{reply: "never"}
				completion := NewCompletionUsecase(CompletionUsecaseDeps{Upstream: upstream}, staticSettings(config.OpenAI{}))

				_, err := completion.Complete(context.Background(), tt.req)
				require.Error(t, err)
				assert.Equal(t, model.ErrorKindMalformed, model.KindOf(err))
				assert.Nil(t, upstream.messages)
			},
		)
	}
}

func TestCompleteIgnoresExchangeLogFailure(t *testing.T) {
	completion := NewCompletionUsecase(
		CompletionUsecaseDeps{
			Upstream:    &fakeUpstream{reply: "still fine"},
			ExchangeLog: &fakeExchangeLog{err: errors.New("redis down")},
		},
		staticSettings(config.OpenAI{}),
	)

	reply, err := completion.Complete(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "still fine", reply)
}

func TestCompleteReadsSettingsPerRequest(t *testing.T) {
	upstream := &fakeUpstream{reply: "ok"}
	engine := "first"
	completion := NewCompletionUsecase(
		CompletionUsecaseDeps{Upstream: upstream},
		func() config.OpenAI {
			return config.OpenAI{Engine: engine, SystemPrompt: config.DefaultSystemPrompt}
		},
	)

	_, err := completion.Complete(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "first", upstream.engine)

	engine = "second"
	_, err = completion.Complete(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "second", upstream.engine)
}

// wordCounter counts one token per word of message content.
func wordCounter(calls *int) TokenCounter {
	return func(messages []openai.ChatCompletionMessage, _ string) (int, error) {
		*calls++
		var total int
		for _, message := range messages {
			total += len(strings.Fields(message.Content))
		}
		return total, nil
	}
}

func threeTurnRequest() model.ChatRequest {
	return model.ChatRequest{
		Messages: []model.WireMessage{
			{Role: "user", Content: "old old old old old old"},
			{Role: "assistant", Content: "recent reply"},
			{Role: "user", Content: "latest question"},
		},
		Model: "gpt-4o",
	}
}

func TestCompleteTrimsToTokenBudget(t *testing.T) {
	tests := []struct {
		name   string
		budget int
		want   []string
	}{
		{
			name:   "drops oldest turn",
			budget: 10,
			want:   []string{config.DefaultSystemPrompt, "recent reply", "latest question"},
		},
		{
			name:   "keeps system and latest",
			budget: 1,
			want:   []string{config.DefaultSystemPrompt, "latest question"},
		},
		{
			name:   "fits",
			budget: 100,
			want:   []string{config.DefaultSystemPrompt, "old old old old old old", "recent reply", "latest question"},
		},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				var calls int
				upstream := &fakeUpstream{reply: "ok"}
				completion := NewCompletionUsecase(
					CompletionUsecaseDeps{Upstream: upstream, TokenCounter: wordCounter(&calls)},
					staticSettings(config.OpenAI{MaxPromptTokens: tt.budget}),
				)

				_, err := completion.Complete(context.Background(), threeTurnRequest())
				require.NoError(t, err)
				var got []string
				for _, message := range upstream.messages {
					got = append(got, message.Content)
				}
				assert.Equal(t, tt.want, got)
				assert.Equal(t, openai.ChatMessageRoleSystem, upstream.messages[0].Role)
				assert.Positive(t, calls)
			},
		)
	}
}

func TestCompleteWithoutBudgetSkipsCounting(t *testing.T) {
	var calls int
	upstream := &fakeUpstream{reply: "ok"}
	completion := NewCompletionUsecase(
		CompletionUsecaseDeps{Upstream: upstream, TokenCounter: wordCounter(&calls)},
		staticSettings(config.OpenAI{}),
	)

	_, err := completion.Complete(context.Background(), threeTurnRequest())
	require.NoError(t, err)
	assert.Zero(t, calls)
	require.Len(t, upstream.messages, 4)
	assert.Equal(t, "old old old old old old", upstream.messages[1].Content)
}

func TestCompleteKeepsHistoryWhenCountingFails(t *testing.T) {
	upstream := &fakeUpstream{reply: "ok"}
	completion := NewCompletionUsecase(
		CompletionUsecaseDeps{
			Upstream: upstream,
			TokenCounter: func([]openai.ChatCompletionMessage, string) (int, error) {
				return 0, errors.New("encoding unavailable")
			},
		},
		staticSettings(config.OpenAI{MaxPromptTokens: 1}),
	)

	_, err := completion.Complete(context.Background(), threeTurnRequest())
	require.NoError(t, err)
	assert.Len(t, upstream.messages, 4)
}
