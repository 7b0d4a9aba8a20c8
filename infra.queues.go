package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

// Predefined Queue IDs. One queue per kind of book change.
const (
	CreateQueue = "books.creation"
	UpdateQueue = "books.updating"
	DeleteQueue = "books.deletion"
)

var (
	_ Queuer = (*redisQueue)(nil)
	_ Queuer = (*memoryQueue)(nil)
)

// Queuer describes a queue of book events.
type Queuer interface {
	Push(ctx context.Context, qid string, event BookEvent) error
	Pop(ctx context.Context, qids ...string) (string, BookEvent, error)
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// redisQueue is a Queuer backed by redis lists.
type redisQueue struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client, timeout: time.Second}
}

// Push enqueues an event onto the list identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event BookEvent) error {
	data, err := jsoniter.ConfigFastest.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, data).Err()
}

// Pop blocks until an event is available on one of the lists. The
// blocking call is bounded so that ctx is checked between attempts.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	var event BookEvent
	for {
		if err := ctx.Err(); err != nil {
			return "", event, err
		}
		infos, err := q.client.BLPop(ctx, q.timeout, qids...).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", event, err
		}
		if err = jsoniter.ConfigFastest.Unmarshal([]byte(infos[1]), &event); err != nil {
			return "", event, err
		}
		return infos[0], event, nil
	}
}

type queuedEvent struct {
	qid   string
	event BookEvent
}

// memoryQueue is an in-process bounded Queuer. Events of all queue
// ids share one channel so Pop returns them in push order.
type memoryQueue struct {
	events chan queuedEvent
}

func NewMemoryQueue(size int) Queuer {
	return &memoryQueue{events: make(chan queuedEvent, size)}
}

// Push never blocks. It fails with ErrQueueFull once the buffer is exhausted.
func (q *memoryQueue) Push(ctx context.Context, qid string, event BookEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.events <- queuedEvent{qid: qid, event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop waits for the next event pushed on any of the given queue ids.
func (q *memoryQueue) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return "", BookEvent{}, ctx.Err()
		case qe := <-q.events:
			for _, qid := range qids {
				if qe.qid == qid {
					return qe.qid, qe.event, nil
				}
			}
		}
	}
}

// NewQueue builds the queue selected in the configuration.
func NewQueue(config *Config, client *redis.Client) Queuer {
	if config.Queue.Type == RedisQueueType && client != nil {
		return NewRedisQueue(client)
	}
	return NewMemoryQueue(config.Queue.BufferSize)
}
