package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Record describes a post whose delivery outcome could not be written back
// to storage. The post row is left in 'sending' until the reconcile worker
// picks it up; the record preserves what actually happened for an operator.
type Record struct {
	PostID    string    `json:"post_id"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
	LastDBErr string    `json:"last_db_error"`
}

// Journal is a redis-list dead letter store for write-back failures.
type Journal struct {
	client *redis.Client
	key    string
}

func NewJournal(client *redis.Client, key string) *Journal {
	return &Journal{
		client: client,
		key:    key,
	}
}

func (j *Journal) Push(ctx context.Context, record *Record) error {
	if j == nil || j.client == nil {
		logrus.Warnf("Dead letter journal unavailable, dropping record for post %s", record.PostID)
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter record: %w", err)
	}

	if err := j.client.RPush(ctx, j.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"post_id": record.PostID,
		"outcome": record.Outcome,
	}).Warn("Post outcome recorded to dead letter journal")
	return nil
}

// Pop removes and returns the oldest record, nil when the journal is empty.
func (j *Journal) Pop(ctx context.Context) (*Record, error) {
	if j == nil || j.client == nil {
		return nil, nil
	}

	data, err := j.client.LPop(ctx, j.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop dead letter record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dead letter record: %w", err)
	}
	return &record, nil
}

func (j *Journal) Size(ctx context.Context) (int64, error) {
	if j == nil || j.client == nil {
		return 0, nil
	}
	return j.client.LLen(ctx, j.key).Result()
}
