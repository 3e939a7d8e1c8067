package model

import (
	"strings"

	"github.com/google/uuid"
)

type PartType string

const (
	PartTypeText  = PartType("text")
	PartTypeImage = PartType("image")
)

type Image struct {
	Data      []byte
	MediaType string
}

// Part is one content segment of a message. Text is set for PartTypeText,
// Image for PartTypeImage.
type Part struct {
	Type  PartType
	Text  string
	Image *Image
}

func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

func NewImagePart(data []byte, mediaType string) Part {
	return Part{Type: PartTypeImage, Image: &Image{Data: data, MediaType: mediaType}}
}

type Message struct {
	ID    uuid.UUID
	Role  Role
	Parts []Part
}

func NewTextMessage(role Role, text string) Message {
	return Message{
		ID:    uuid.New(),
		Role:  role,
		Parts: []Part{NewTextPart(text)},
	}
}

// Text joins the text parts of the message.
func (m Message) Text() string {
	texts := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Type == PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

type ModelOption struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

func DefaultModelOptions() []ModelOption {
	return []ModelOption{
		{Name: "GPT-3.5 Turbo", Value: "gpt-35-turbo"},
		{Name: "GPT-4o", Value: "gpt-4o"},
	}
}
