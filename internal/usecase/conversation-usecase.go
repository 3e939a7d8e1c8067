package usecase

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-chat-proxy/internal/conversation"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
)

type ProxyClient interface {
	Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error)
}

type ConversationUsecaseDeps struct {
	Proxy ProxyClient
}

// ConversationUsecase runs the client side of a chat session: it applies
// actions to the conversation state and performs the proxy calls they ask for.
type ConversationUsecase struct {
	ConversationUsecaseDeps
	mu    sync.Mutex
	state conversation.State
}

func NewConversationUsecase(deps ConversationUsecaseDeps, selectedModel string) *ConversationUsecase {
	return &ConversationUsecase{
		ConversationUsecaseDeps: deps,
		state:                   conversation.New(selectedModel),
	}
}

// Submit sends text as a new user turn and blocks until the assistant message
// is appended. It returns nil for blank text and conversation.ErrRequestInFlight
// while another turn is outstanding.
func (c *ConversationUsecase) Submit(ctx context.Context, text string) (*model.Message, error) {
	return c.run(ctx, conversation.Submit{Text: text})
}

// Regenerate resends the latest user text without appending it again. It
// returns nil when there is nothing to regenerate.
func (c *ConversationUsecase) Regenerate(ctx context.Context) (*model.Message, error) {
	return c.run(ctx, conversation.Regenerate{})
}

func (c *ConversationUsecase) SelectModel(value string) {
	_, _ = c.dispatch(conversation.SelectModel{Value: value})
}

func (c *ConversationUsecase) ToggleWebSearch() bool {
	_, _ = c.dispatch(conversation.ToggleWebSearch{})
	return c.Snapshot().WebSearch
}

// Snapshot returns the current state. Its message slice must not be modified.
func (c *ConversationUsecase) Snapshot() conversation.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ConversationUsecase) CopyText(id uuid.UUID) (string, error) {
	return conversation.MessageText(c.Snapshot(), id)
}

// AnswerID returns the id of the back-th newest assistant answer, 1 being the latest.
func (c *ConversationUsecase) AnswerID(back int) (uuid.UUID, bool) {
	return conversation.AssistantMessageID(c.Snapshot(), back)
}

func (c *ConversationUsecase) run(ctx context.Context, action conversation.Action) (*model.Message, error) {
	effect, err := c.dispatch(action)
	if err != nil || effect == nil {
		return nil, err
	}

	var result conversation.ProxyResult
	resp, err := c.Proxy.Chat(ctx, effect.ChatRequest())
	if err != nil {
		log.Printf("failed to get reply from proxy (%s): %v", model.KindOf(err), err)
		result.Err = err
	} else {
		result.Reply = resp.Reply
	}

	if _, err = c.dispatch(result); err != nil {
		return nil, err
	}
	state := c.Snapshot()
	last := state.Messages[len(state.Messages)-1]
	return &last, nil
}

func (c *ConversationUsecase) dispatch(action conversation.Action) (*conversation.RequestEffect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, effect, err := conversation.Reduce(c.state, action)
	if err != nil {
		return nil, err
	}
	c.state = next
	return effect, nil
}
