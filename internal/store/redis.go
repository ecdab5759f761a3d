package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
)

// Redis stores each record as a hash (blob, title, description) plus an
// adjacent envelope key, using a connect-and-ping-on-construction
// pattern.
type Redis struct {
	client *redis.Client
	prefix string
	log    *logrus.Logger
}

// NewRedis dials addr and verifies connectivity before returning, a
// fail-fast constructor.
func NewRedis(addr, password string, db int, prefix string, log *logrus.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, pterrors.NewConfigError("redis store connect", err)
	}
	log.WithField("addr", addr).Info("redis store connected")

	return &Redis{client: client, prefix: prefix, log: log}, nil
}

func (r *Redis) recordKey(id string) string   { return fmt.Sprintf("%s:record:%s", r.prefix, id) }
func (r *Redis) envelopeKey(id string) string { return fmt.Sprintf("%s:envelope:%s", r.prefix, id) }
func (r *Redis) indexKey() string             { return fmt.Sprintf("%s:index", r.prefix) }

func (r *Redis) Put(ctx context.Context, id, title, description string, blob []byte) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.recordKey(id), map[string]any{"title": title, "description": description, "blob": blob})
	pipe.SAdd(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", pterrors.NewConfigError("redis store put", err)
	}
	return id, nil
}

func (r *Redis) PutEnvelope(ctx context.Context, id string, envelope []byte) error {
	if err := r.client.Set(ctx, r.envelopeKey(id), envelope, 0).Err(); err != nil {
		return pterrors.NewConfigError("redis store put envelope", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) ([]byte, error) {
	blob, err := r.client.HGet(ctx, r.recordKey(id), "blob").Bytes()
	if err != nil {
		return nil, pterrors.NewConfigError("redis store get", err)
	}
	return blob, nil
}

func (r *Redis) GetEnvelope(ctx context.Context, id string) ([]byte, error) {
	blob, err := r.client.Get(ctx, r.envelopeKey(id)).Bytes()
	if err != nil {
		return nil, pterrors.NewConfigError("redis store get envelope", err)
	}
	return blob, nil
}

// Search scans every indexed id's title/description. Redis has no
// built-in full-text index without the RediSearch module, so this is a
// best-effort linear scan documented as such rather than a silent
// approximation.
func (r *Redis) Search(ctx context.Context, query string) ([]Hit, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, pterrors.NewConfigError("redis store search", err)
	}
	var hits []Hit
	for _, id := range ids {
		fields, err := r.client.HMGet(ctx, r.recordKey(id), "title", "description").Result()
		if err != nil {
			r.log.WithError(err).WithField("id", id).Warn("search skipped unreadable record")
			continue
		}
		title, _ := fields[0].(string)
		desc, _ := fields[1].(string)
		if containsFold(title, query) || containsFold(desc, query) {
			hits = append(hits, Hit{ID: id, Title: title, Description: desc})
		}
	}
	return hits, nil
}

func (r *Redis) Close() error { return r.client.Close() }
