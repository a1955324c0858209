package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangesQueue is the redis list holding every catalogue change in publish order.
const ChangesQueue = "books:changes"

// Kinds of catalogue changes.
const (
	CreateChange = "creation"
	UpdateChange = "updating"
	DeleteChange = "deletion"
)

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a FIFO queue of catalogue changes. Pop returns the
// changes in the order they were pushed whatever their kind.
type Queuer interface {
	Push(ctx context.Context, op string, book Book) error
	Pop(ctx context.Context) (string, Book, error)
}

// Change is the queued payload.
type Change struct {
	Op   string `json:"op"`
	Book Book   `json:"book"`
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client, key: ChangesQueue}
}

// Push appends a change to the tail of the list.
func (q *redisQueue) Push(ctx context.Context, op string, book Book) error {
	changeBytes, err := json.Marshal(Change{Op: op, Book: book})
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, changeBytes).Err()
}

// Pop blocks until a change is available at the head of the list.
func (q *redisQueue) Pop(ctx context.Context) (string, Book, error) {
	var change Change
	infos, err := q.client.BLPop(ctx, 0*time.Second, q.key).Result()
	if err != nil {
		return "", Book{}, err
	}

	if err = json.Unmarshal([]byte(infos[1]), &change); err != nil {
		return "", Book{}, err
	}
	return change.Op, change.Book, nil
}
