package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/iamvkosarev/ai-chat-proxy/config"
	"github.com/iamvkosarev/ai-chat-proxy/internal/client"
	"github.com/iamvkosarev/ai-chat-proxy/internal/handler"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	in_memory "github.com/iamvkosarev/ai-chat-proxy/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/ai-chat-proxy/internal/storage/key-value"
	"github.com/iamvkosarev/ai-chat-proxy/internal/upstream"
	"github.com/iamvkosarev/ai-chat-proxy/internal/usecase"
	"github.com/iamvkosarev/ai-chat-proxy/pkg/local"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
)

const shutdownTimeout = 10 * time.Second

type exchangeStore interface {
	usecase.ExchangeLog
	handler.ExchangeReader
}

func NewRouter(cfg *config.Config, completion handler.Completer, exchanges handler.ExchangeReader) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/chat", handler.NewChatHandler(completion, cfg.HTTP.MaxBodyBytes))
	mux.Handle("GET /api/chat/ws", handler.NewWSHandler(completion, cfg.HTTP.AllowedOrigins))
	mux.HandleFunc("GET /api/models", handler.ModelsHandler(cfg.Chat.Models))
	mux.HandleFunc("GET /api/exchanges", handler.ExchangesHandler(exchanges))
	mux.HandleFunc("GET /health", handler.HealthHandler)
	return mux
}

// RunServer serves the completion proxy until ctx is cancelled. OpenAI
// settings are reloaded from .env, cfgPath and the environment per request.
func RunServer(ctx context.Context, cfg *config.Config, cfgPath string) error {
	exchanges, closeExchanges, err := newExchangeStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeExchanges()

	completion := usecase.NewCompletionUsecase(
		usecase.CompletionUsecaseDeps{
			Upstream:    upstream.NewOpenAI(nil),
			ExchangeLog: exchanges,
		},
		config.OpenAISettings(cfgPath, cfg.OpenAI),
	)

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewRouter(cfg, completion, exchanges),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serveErr error
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			<-ctx.Done()
			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("failed to shut down server: %v", err)
			}
		},
	)
	wg.Go(
		func() {
			defer cancel()
			log.Printf("Chat proxy listening on %s", cfg.HTTP.Address)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serveErr = fmt.Errorf("server error: %w", err)
			}
		},
	)
	wg.Wait()
	return serveErr
}

func newExchangeStore(ctx context.Context, cfg config.Redis) (exchangeStore, func(), error) {
	if cfg.Endpoint == "" {
		log.Println("REDIS_ENDPOINT is not set, keeping exchanges in memory")
		return in_memory.NewExchangeLog(in_memory.DefaultExchangeLogCapacity), func() {}, nil
	}
	rdb := redis.NewClient(
		&redis.Options{
			Addr: cfg.Endpoint,
		},
	)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Endpoint, err)
	}
	log.Printf("Recording exchanges to redis stream %s", cfg.Stream)
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Printf("failed to close redis client: %v", err)
		}
	}
	return key_value.NewExchangeLog(rdb, cfg.Stream, cfg.StreamMaxLen), closeFn, nil
}

// RunChat runs the terminal chat client against the proxy at cfg.Chat.ProxyURL.
func RunChat(ctx context.Context, cfg *config.Config, in io.Reader, out *os.File) error {
	proxy, err := client.NewProxyClient(cfg.Chat.ProxyURL, nil)
	if err != nil {
		return err
	}
	models := modelsOrDefault(cfg.Chat.Models)
	conversation := usecase.NewConversationUsecase(
		usecase.ConversationUsecaseDeps{
			Proxy: proxy,
		}, models[0].Value,
	)
	interactive := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	terminal := usecase.NewTerminalUsecase(
		usecase.TerminalUsecaseDeps{
			Conversation: conversation,
			Clipboard:    usecase.OSC52Clipboard{Out: out},
		},
		in,
		out,
		interactive,
		local.ParseLanguage(cfg.Chat.Language),
		models,
	)
	return terminal.Run(ctx)
}

func modelsOrDefault(models []model.ModelOption) []model.ModelOption {
	if len(models) == 0 {
		return model.DefaultModelOptions()
	}
	return models
}
