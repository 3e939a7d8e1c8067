package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-chat-proxy/config"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	openai_tools "github.com/iamvkosarev/ai-chat-proxy/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
)

type Upstream interface {
	CreateCompletion(
		ctx context.Context,
		cfg config.OpenAI,
		engine string,
		messages []openai.ChatCompletionMessage,
	) (string, error)
}

type ExchangeLog interface {
	Record(ctx context.Context, exchange model.Exchange) error
}

// TokenCounter estimates the prompt size of messages for an engine.
type TokenCounter func(messages []openai.ChatCompletionMessage, engine string) (int, error)

type CompletionUsecaseDeps struct {
	Upstream     Upstream
	ExchangeLog  ExchangeLog
	TokenCounter TokenCounter
}

// CompletionUsecase forwards one conversation turn to the upstream provider.
// It keeps no state between calls.
type CompletionUsecase struct {
	CompletionUsecaseDeps
	settings func() config.OpenAI
}

func NewCompletionUsecase(deps CompletionUsecaseDeps, settings func() config.OpenAI) *CompletionUsecase {
	if deps.TokenCounter == nil {
		deps.TokenCounter = openai_tools.CountToken
	}
	return &CompletionUsecase{
		CompletionUsecaseDeps: deps,
		settings:              settings,
	}
}

// Complete returns the assistant reply for req. Failures are *model.CompletionError.
func (c *CompletionUsecase) Complete(ctx context.Context, req model.ChatRequest) (string, error) {
	cfg := c.settings()
	engine := resolveEngine(cfg, req.Model)

	log.Printf("Received messages: %d", len(req.Messages))
	log.Printf("Selected model: %q", req.Model)
	log.Printf("Web search enabled: %v", req.WebSearch)
	log.Printf("Using engine: %q", engine)
	log.Printf("API key loaded: %v", cfg.APIKey != "")

	messageHistory, err := buildMessages(cfg, req)
	if err != nil {
		c.record(ctx, engine, req, "", err)
		return "", err
	}
	if cfg.MaxPromptTokens > 0 {
		messageHistory = c.trimToBudget(messageHistory, engine, cfg.MaxPromptTokens)
	}

	reply, err := c.Upstream.CreateCompletion(ctx, cfg, engine, messageHistory)
	if err != nil {
		log.Printf("Upstream completion error (%s): %v", model.KindOf(err), err)
		c.record(ctx, engine, req, "", err)
		return "", err
	}

	log.Printf("Assistant reply: %q", reply)
	c.record(ctx, engine, req, reply, nil)
	return reply, nil
}

func resolveEngine(cfg config.OpenAI, requested string) string {
	if cfg.Engine != "" {
		return cfg.Engine
	}
	return requested
}

func buildMessages(cfg config.OpenAI, req model.ChatRequest) ([]openai.ChatCompletionMessage, error) {
	if len(req.Messages) == 0 {
		return nil, model.NewCompletionError(model.ErrorKindMalformed, model.ErrNoMessages)
	}
	systemPrompt := cfg.SystemPrompt
	if req.WebSearch {
		systemPrompt += "\n\n" + cfg.WebSearchPrompt
	}
	messageHistory := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messageHistory = append(
		messageHistory, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
	)
	for i, message := range req.Messages {
		role, ok := model.ParseRole(message.Role)
		if !ok {
			return nil, model.NewCompletionError(
				model.ErrorKindMalformed,
				fmt.Errorf("message %d has unknown role %q", i, message.Role),
			)
		}
		messageHistory = append(
			messageHistory, openai.ChatCompletionMessage{
				Role:    string(role),
				Content: message.Content,
			},
		)
	}
	return messageHistory, nil
}

// trimToBudget drops the oldest messages after the system instruction until
// the prompt fits, always keeping the latest message.
func (c *CompletionUsecase) trimToBudget(
	messageHistory []openai.ChatCompletionMessage,
	engine string,
	budget int,
) []openai.ChatCompletionMessage {
	for len(messageHistory) > 2 {
		tokenCount, err := c.TokenCounter(messageHistory, engine)
		if err != nil {
			log.Printf("count token error: %v", err)
			return messageHistory
		}
		log.Printf("Prompt tokens: %d", tokenCount)
		if tokenCount <= budget {
			break
		}
		messageHistory = append(messageHistory[:1], messageHistory[2:]...)
		log.Println("History trimmed due to token limit")
	}
	return messageHistory
}

func (c *CompletionUsecase) record(ctx context.Context, engine string, req model.ChatRequest, reply string, err error) {
	if c.ExchangeLog == nil {
		return
	}
	var prompt string
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	exchange := model.Exchange{
		ID:        uuid.NewString(),
		Engine:    engine,
		Model:     req.Model,
		WebSearch: req.WebSearch,
		Prompt:    prompt,
		Reply:     reply,
		ErrorKind: model.KindOf(err),
		CreatedAt: time.Now(),
	}
	if recordErr := c.ExchangeLog.Record(ctx, exchange); recordErr != nil {
		log.Printf("failed to record exchange: %v", recordErr)
	}
}
