package upstream

import (
	"context"
	"log"
	"time"

	"github.com/iamvkosarev/ai-chat-proxy/config"
	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
)

// Policy bounds one completion call. The zero Timeout means no local deadline;
// MaxAttempts below 2 means a single attempt.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
}

func PolicyFromConfig(cfg config.OpenAI) Policy {
	return Policy{
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// Do runs call until it succeeds, fails with a malformed result, or attempts
// run out. There is no backoff between attempts.
func (p Policy) Do(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		reply, err := p.attempt(ctx, call)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if model.KindOf(err) == model.ErrorKindMalformed || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			log.Printf("upstream attempt %d/%d failed: %v", attempt, attempts, err)
		}
	}
	return "", lastErr
}

func (p Policy) attempt(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	if p.Timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return call(ctx)
}
