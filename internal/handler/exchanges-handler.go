package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
)

const (
	defaultExchangesLimit = 20
	maxExchangesLimit     = 500
)

type ExchangeReader interface {
	Recent(ctx context.Context, limit int) ([]model.Exchange, error)
}

// ExchangesHandler lists the latest proxied turns, newest first.
func ExchangesHandler(reader ExchangeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultExchangesLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(parsed, maxExchangesLimit)
		}
		exchanges, err := reader.Recent(r.Context(), limit)
		if err != nil {
			log.Printf("failed to read exchanges: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read exchanges"})
			return
		}
		writeJSON(w, http.StatusOK, exchanges)
	}
}
