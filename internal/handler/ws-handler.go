package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
)

// WSHandler carries the /api/chat envelopes over a WebSocket, one request
// frame answered by one response frame. Turns on a connection run one at a time.
// With no allowed origins configured only same-origin upgrades are accepted.
type WSHandler struct {
	completer      Completer
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

func NewWSHandler(completer Completer, allowedOrigins []string) *WSHandler {
	origins := make(map[string]bool)
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h := &WSHandler{completer: completer, allowedOrigins: origins}
	if len(origins) > 0 {
		h.upgrader.CheckOrigin = h.checkOrigin
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.allowedOrigins[origin]
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket closed unexpectedly: %v", err)
			}
			return
		}

		resp := model.ChatResponse{Reply: model.ReplyErrorFetching}
		var req model.ChatRequest
		if err = json.Unmarshal(message, &req); err != nil {
			log.Printf("LLM proxy error (%s): %v", model.ErrorKindMalformed, err)
		} else if reply, err := h.completer.Complete(r.Context(), req); err != nil {
			log.Printf("LLM proxy error (%s): %v", model.KindOf(err), err)
		} else {
			resp.Reply = reply
		}

		if err = conn.WriteJSON(resp); err != nil {
			log.Printf("Failed to write to WebSocket: %v", err)
			return
		}
	}
}
