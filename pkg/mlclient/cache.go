package mlclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"jobtrack-backend/pkg/metrics"
	"jobtrack-backend/pkg/textutil"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 7 * 24 * time.Hour

// CachedClassifier memoizes classifications in Redis. Redis failures never
// block classification.
type CachedClassifier struct {
	next   Classifier
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedClassifier(next Classifier, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedClassifier {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClassifier{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedClassifier) Classify(ctx context.Context, in Input) (*Classification, error) {
	in.Body = textutil.Truncate(in.Body, MaxBodyChars)
	key := cacheKey(in)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Classification
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			metrics.RecordCacheLookup("hit")
			return &cached, nil
		}
		metrics.RecordCacheLookup("error")
	case errors.Is(err, redis.Nil):
		metrics.RecordCacheLookup("miss")
	default:
		metrics.RecordCacheLookup("error")
		c.logger.Warn("classifier cache lookup failed, calling service", zap.Error(err))
	}

	result, err := c.next.Classify(ctx, in)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("classifier cache store failed", zap.Error(err))
		}
	}
	return result, nil
}

func cacheKey(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Subject))
	h.Write([]byte{0})
	h.Write([]byte(in.From))
	h.Write([]byte{0})
	h.Write([]byte(in.Body))
	return "classify:" + hex.EncodeToString(h.Sum(nil))
}
