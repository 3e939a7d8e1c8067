package openai_tools

import (
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

// wordEncoder yields one token per whitespace-separated word.
type wordEncoder struct{}

func (wordEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

func TestCountWith(t *testing.T) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "be brief"},
		{Role: openai.ChatMessageRoleUser, Content: "hello there friend", Name: "bob"},
	}
	// reply(3) + system(3+1+2) + user(3+1+3) + name(1+1)
	assert.Equal(t, 18, countWith(wordEncoder{}, messages))
}

func TestCountWithEmpty(t *testing.T) {
	assert.Equal(t, tokensPerReply, countWith(wordEncoder{}, nil))
}

func TestCountWithMultiContent(t *testing.T) {
	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "what is this"},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: "data:image/png;base64,AA=="}},
			},
		},
	}
	assert.Equal(t, 3+3+1+3, countWith(wordEncoder{}, messages))
}
