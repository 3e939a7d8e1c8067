// Package conversation holds the client-side conversation state and the
// transitions that drive it. It has no I/O: Reduce returns the request the
// caller has to issue, and the caller feeds the result back as ProxyResult.
package conversation

import (
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
)

var (
	ErrRequestInFlight   = errors.New("request already in flight")
	ErrNoRequestInFlight = errors.New("no request in flight")
	ErrMessageNotFound   = errors.New("message not found")
)

type State struct {
	Messages      []model.Message
	Status        model.Status
	SelectedModel string
	WebSearch     bool
}

func New(selectedModel string) State {
	return State{
		Status:        model.StatusIdle,
		SelectedModel: selectedModel,
	}
}

type Action interface {
	isAction()
}

type Submit struct {
	Text string
}

type Regenerate struct{}

// ProxyResult settles the in-flight request. Err covers both transport
// failures and responses that could not be used.
type ProxyResult struct {
	Reply string
	Err   error
}

type SelectModel struct {
	Value string
}

type ToggleWebSearch struct{}

func (Submit) isAction()          {}
func (Regenerate) isAction()      {}
func (ProxyResult) isAction()     {}
func (SelectModel) isAction()     {}
func (ToggleWebSearch) isAction() {}

// RequestEffect is the proxy call a transition asks for.
type RequestEffect struct {
	Text      string
	Model     string
	WebSearch bool
}

func (e RequestEffect) ChatRequest() model.ChatRequest {
	return model.ChatRequest{
		Messages: []model.WireMessage{
			{Role: string(model.RoleUser), Content: e.Text},
		},
		Model:     e.Model,
		WebSearch: e.WebSearch,
	}
}

// Reduce applies action to state. A nil effect with a nil error means the
// action was a no-op or needs no request. On error the state is returned
// unchanged.
func Reduce(state State, action Action) (State, *RequestEffect, error) {
	switch a := action.(type) {
	case Submit:
		if strings.TrimSpace(a.Text) == "" {
			return state, nil, nil
		}
		if state.Status == model.StatusSubmitted {
			return state, nil, ErrRequestInFlight
		}
		state.Messages = appendMessage(state.Messages, model.NewTextMessage(model.RoleUser, a.Text))
		return request(state, a.Text)
	case Regenerate:
		lastUser, ok := lastMessageWithRole(state.Messages, model.RoleUser)
		if !ok {
			return state, nil, nil
		}
		if state.Status == model.StatusSubmitted {
			return state, nil, ErrRequestInFlight
		}
		return request(state, lastUser.Text())
	case ProxyResult:
		if state.Status != model.StatusSubmitted {
			return state, nil, ErrNoRequestInFlight
		}
		state.Messages = appendMessage(state.Messages, model.NewTextMessage(model.RoleAssistant, assistantText(a)))
		state.Status = model.StatusIdle
		return state, nil, nil
	case SelectModel:
		state.SelectedModel = a.Value
		return state, nil, nil
	case ToggleWebSearch:
		state.WebSearch = !state.WebSearch
		return state, nil, nil
	default:
		return state, nil, nil
	}
}

func request(state State, text string) (State, *RequestEffect, error) {
	state.Status = model.StatusSubmitted
	return state, &RequestEffect{
		Text:      text,
		Model:     state.SelectedModel,
		WebSearch: state.WebSearch,
	}, nil
}

func assistantText(result ProxyResult) string {
	switch {
	case result.Err != nil:
		return model.ReplyErrorFetching
	case result.Reply == "":
		return model.ReplyEmpty
	default:
		return result.Reply
	}
}

// appendMessage never writes into the backing array of a previous state.
func appendMessage(messages []model.Message, message model.Message) []model.Message {
	return append(slices.Clip(messages), message)
}

func lastMessageWithRole(messages []model.Message, role model.Role) (model.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return messages[i], true
		}
	}
	return model.Message{}, false
}

// MessageText returns the text of the message with the given id, for copying.
func MessageText(state State, id uuid.UUID) (string, error) {
	for _, message := range state.Messages {
		if message.ID == id {
			return message.Text(), nil
		}
	}
	return "", ErrMessageNotFound
}

func LastAssistantText(state State) (string, bool) {
	message, ok := lastMessageWithRole(state.Messages, model.RoleAssistant)
	if !ok {
		return "", false
	}
	return message.Text(), true
}

// AssistantMessageID returns the id of the back-th newest assistant message,
// counting from 1.
func AssistantMessageID(state State, back int) (uuid.UUID, bool) {
	if back < 1 {
		return uuid.Nil, false
	}
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role != model.RoleAssistant {
			continue
		}
		back--
		if back == 0 {
			return state.Messages[i].ID, true
		}
	}
	return uuid.Nil, false
}

func CountRole(state State, role model.Role) int {
	var count int
	for _, message := range state.Messages {
		if message.Role == role {
			count++
		}
	}
	return count
}
