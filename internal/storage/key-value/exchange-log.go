package key_value

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
	"github.com/redis/go-redis/v9"
)

const exchangeField = "exchange"

type exchangeInternal struct {
	ID        string          `json:"id"`
	Engine    string          `json:"engine"`
	Model     string          `json:"model"`
	WebSearch bool            `json:"web_search"`
	Prompt    string          `json:"prompt"`
	Reply     string          `json:"reply"`
	ErrorKind model.ErrorKind `json:"error_kind,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ExchangeLog appends exchanges to a capped Redis stream.
type ExchangeLog struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewExchangeLog(rdb *redis.Client, stream string, maxLen int64) *ExchangeLog {
	return &ExchangeLog{
		rdb:    rdb,
		stream: stream,
		maxLen: maxLen,
	}
}

func (e *ExchangeLog) Record(ctx context.Context, exchange model.Exchange) error {
	exchangeJSON, err := json.Marshal(toInternal(exchange))
	if err != nil {
		return fmt.Errorf("failed to marshal exchange %s: %w", exchange.ID, err)
	}
	if err = e.rdb.XAdd(ctx, e.xAddArgs(exchangeJSON)).Err(); err != nil {
		return fmt.Errorf("failed to add exchange %s to stream %s: %w", exchange.ID, e.stream, err)
	}
	return nil
}

// Recent reads up to limit exchanges, newest first.
func (e *ExchangeLog) Recent(ctx context.Context, limit int) ([]model.Exchange, error) {
	entries, err := e.rdb.XRevRangeN(ctx, e.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", e.stream, err)
	}
	exchanges := make([]model.Exchange, 0, len(entries))
	for _, entry := range entries {
		exchange, err := fromStreamValues(entry.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stream entry %s: %w", entry.ID, err)
		}
		exchanges = append(exchanges, exchange)
	}
	return exchanges, nil
}

func (e *ExchangeLog) xAddArgs(exchangeJSON []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]interface{}{
			exchangeField: string(exchangeJSON),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}
	return args
}

func fromStreamValues(values map[string]interface{}) (model.Exchange, error) {
	raw, ok := values[exchangeField].(string)
	if !ok {
		return model.Exchange{}, fmt.Errorf("field %q is missing", exchangeField)
	}
	var exchangeInt exchangeInternal
	if err := json.Unmarshal([]byte(raw), &exchangeInt); err != nil {
		return model.Exchange{}, fmt.Errorf("failed to unmarshal exchange: %w", err)
	}
	return fromInternal(exchangeInt), nil
}

func toInternal(exchange model.Exchange) exchangeInternal {
	return exchangeInternal{
		ID:        exchange.ID,
		Engine:    exchange.Engine,
		Model:     exchange.Model,
		WebSearch: exchange.WebSearch,
		Prompt:    exchange.Prompt,
		Reply:     exchange.Reply,
		ErrorKind: exchange.ErrorKind,
		CreatedAt: exchange.CreatedAt,
	}
}

func fromInternal(exchangeInt exchangeInternal) model.Exchange {
	return model.Exchange{
		ID:        exchangeInt.ID,
		Engine:    exchangeInt.Engine,
		Model:     exchangeInt.Model,
		WebSearch: exchangeInt.WebSearch,
		Prompt:    exchangeInt.Prompt,
		Reply:     exchangeInt.Reply,
		ErrorKind: exchangeInt.ErrorKind,
		CreatedAt: exchangeInt.CreatedAt,
	}
}
