package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/chat", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				raw, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"messages":[{"role":"user","content":"hi"}],"model":"gpt-4o","webSearch":true}`, string(raw))
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"reply":"Hello!"}`)
			},
		),
	)
	defer srv.Close()

	proxy, err := NewProxyClient(srv.URL, srv.Client())
	require.NoError(t, err)
	resp, err := proxy.Chat(
		context.Background(), model.ChatRequest{
			Messages:  []model.WireMessage{{Role: "user", Content: "hi"}},
			Model:     "gpt-4o",
			WebSearch: true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Reply)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    model.ErrorKind
	}{
		{
			name: "error envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(model.HeaderErrorKind, string(model.ErrorKindMalformed))
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"reply":"⚠️ Error fetching LLM response"}`)
			},
			kind: model.ErrorKindMalformed,
		},
		{
			name: "bare status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			kind: model.ErrorKindUpstream,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "<html>gateway</html>")
			},
			kind: model.ErrorKindMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				srv := httptest.NewServer(tt.handler)
				defer srv.Close()

				proxy, err := NewProxyClient(srv.URL, srv.Client())
				require.NoError(t, err)
				_, err = proxy.Chat(context.Background(), model.ChatRequest{Model: "gpt-4o"})
				require.Error(t, err)
				assert.Equal(t, tt.kind, model.KindOf(err))
			},
		)
	}
}

func TestChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	proxy, err := NewProxyClient(baseURL, nil)
	require.NoError(t, err)
	_, err = proxy.Chat(context.Background(), model.ChatRequest{Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, model.ErrorKindTransport, model.KindOf(err))
}
