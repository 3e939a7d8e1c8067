package openai_tools

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const (
	fallbackEncoding = "cl100k_base"

	tokensPerMessage = 3
	tokensPerName    = 1
	tokensPerReply   = 3
)

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// CountToken estimates the prompt size of messages for chatModel. Azure
// deployment names ("gpt-35-turbo") and unknown models use cl100k_base.
func CountToken(messages []openai.ChatCompletionMessage, chatModel string) (int, error) {
	enc, err := encodingFor(chatModel)
	if err != nil {
		return 0, err
	}
	return countWith(enc, messages), nil
}

func encodingFor(chatModel string) (encoder, error) {
	normalized := strings.Replace(chatModel, "gpt-35", "gpt-3.5", 1)
	if enc, err := tiktoken.EncodingForModel(normalized); err == nil {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", fallbackEncoding, err)
	}
	return enc, nil
}

func countWith(enc encoder, messages []openai.ChatCompletionMessage) int {
	total := tokensPerReply
	for _, message := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(message.Role, nil, nil))
		total += len(enc.Encode(message.Content, nil, nil))
		for _, part := range message.MultiContent {
			if part.Type == openai.ChatMessagePartTypeText {
				total += len(enc.Encode(part.Text, nil, nil))
			}
		}
		if message.Name != "" {
			total += tokensPerName
			total += len(enc.Encode(message.Name, nil, nil))
		}
	}
	return total
}
