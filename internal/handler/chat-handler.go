package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Completer interface {
	Complete(ctx context.Context, req model.ChatRequest) (string, error)
}

// ChatHandler serves POST /api/chat. Every response is a model.ChatResponse;
// failures carry the fixed placeholder, status 500 and model.HeaderErrorKind.
// Bodies are read whole unless maxBodyBytes is positive, in which case larger
// bodies are refused with 413.
type ChatHandler struct {
	completer    Completer
	maxBodyBytes int64
}

func NewChatHandler(completer Completer, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{completer: completer, maxBodyBytes: maxBodyBytes}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, model.ChatResponse{Reply: model.ReplyErrorFetching})
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeErrorStatus(
				w, http.StatusRequestEntityTooLarge, model.NewCompletionError(
					model.ErrorKindMalformed,
					fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit),
				),
			)
			return
		}
		h.writeError(w, model.NewCompletionError(model.ErrorKindTransport, err))
		return
	}
	var req model.ChatRequest
	if err = json.Unmarshal(raw, &req); err != nil {
		h.writeError(w, model.NewCompletionError(model.ErrorKindMalformed, err))
		return
	}

	reply, err := h.completer.Complete(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ChatResponse{Reply: reply})
}

func (h *ChatHandler) writeError(w http.ResponseWriter, err error) {
	h.writeErrorStatus(w, http.StatusInternalServerError, err)
}

func (h *ChatHandler) writeErrorStatus(w http.ResponseWriter, status int, err error) {
	kind := model.KindOf(err)
	log.Printf("LLM proxy error (%s): %v", kind, err)
	w.Header().Set(model.HeaderErrorKind, string(kind))
	writeJSON(w, status, model.ChatResponse{Reply: model.ReplyErrorFetching})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ModelsHandler(models []model.ModelOption) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models)
	}
}
