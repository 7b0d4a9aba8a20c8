package main

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startRedisDockerContainer(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Skipf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("redis", "7.0.10-alpine", nil)
	if err != nil {
		t.Fatalf("Failed to start redis: %+v", err)
	}

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		t.Fatalf("Failed to ping Redis: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return addr, destroyFunc
}

func TestMemoryQueue(t *testing.T) {
	t.Run("pop in push order", func(t *testing.T) {
		q := NewMemoryQueue(4)
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, CreateQueue, testEvent(BookCreated, 1)))
		require.NoError(t, q.Push(ctx, DeleteQueue, testEvent(BookDeleted, 1)))

		qid, event, err := q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
		require.NoError(t, err)
		assert.Equal(t, CreateQueue, qid)
		assert.Equal(t, BookCreated, event.Kind)

		qid, event, err = q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
		require.NoError(t, err)
		assert.Equal(t, DeleteQueue, qid)
		assert.Equal(t, BookDeleted, event.Kind)
	})

	t.Run("full buffer", func(t *testing.T) {
		q := NewMemoryQueue(1)
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, CreateQueue, testEvent(BookCreated, 1)))
		assert.ErrorIs(t, q.Push(ctx, CreateQueue, testEvent(BookCreated, 2)), ErrQueueFull)
	})

	t.Run("unknown queue ids are skipped", func(t *testing.T) {
		q := NewMemoryQueue(4)
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, "books.unknown", testEvent(BookCreated, 1)))
		require.NoError(t, q.Push(ctx, UpdateQueue, testEvent(BookUpdated, 2)))

		qid, event, err := q.Pop(ctx, UpdateQueue)
		require.NoError(t, err)
		assert.Equal(t, UpdateQueue, qid)
		assert.Equal(t, int64(2), event.BookID)
	})

	t.Run("pop returns once ctx is done", func(t *testing.T) {
		q := NewMemoryQueue(1)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := q.Pop(ctx, CreateQueue)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("push on cancelled ctx", func(t *testing.T) {
		q := NewMemoryQueue(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, q.Push(ctx, CreateQueue, testEvent(BookCreated, 1)), context.Canceled)
	})
}

func TestNewQueue(t *testing.T) {
	config := &Config{Queue: QueueConfig{Type: RedisQueueType, BufferSize: 8}}
	_, ok := NewQueue(config, nil).(*memoryQueue)
	assert.True(t, ok, "redis type without a client falls back to memory")

	config.Queue.Type = MemoryQueue
	q, ok := NewQueue(config, nil).(*memoryQueue)
	require.True(t, ok)
	assert.Equal(t, 8, cap(q.events))

	config.Queue.Type = RedisQueueType
	_, ok = NewQueue(config, redis.NewClient(&redis.Options{Addr: "localhost:0"})).(*redisQueue)
	assert.True(t, ok)
}

func TestJournalConsumer(t *testing.T) {
	q := NewMemoryQueue(8)
	var (
		mu       sync.Mutex
		appended []BookEvent
	)
	done := make(chan struct{})
	journal := &MockBookJournal{AppendFunc: func(ctx context.Context, event BookEvent) (uint64, error) {
		mu.Lock()
		defer mu.Unlock()
		if event.BookID == 2 {
			return 0, errors.New("journal unavailable")
		}
		appended = append(appended, event)
		if len(appended) == 2 {
			close(done)
		}
		return uint64(len(appended)), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Push(ctx, CreateQueue, testEvent(BookCreated, 1)))
	require.NoError(t, q.Push(ctx, UpdateQueue, testEvent(BookUpdated, 2)))
	require.NoError(t, q.Push(ctx, DeleteQueue, testEvent(BookDeleted, 3)))

	exited := make(chan error, 1)
	go func() {
		exited <- NewJournalConsumer(zap.NewNop(), q, journal).Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not journal the events")
	}
	cancel()

	select {
	case err := <-exited:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not exit on cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, appended, 2)
	assert.Equal(t, int64(1), appended[0].BookID)
	assert.Equal(t, int64(3), appended[1].BookID)
}

func TestRedisQueue(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	client, err := GetRedisClient(&Config{Redis: RedisConfig{Host: host, Port: port}})
	require.NoError(t, err)
	defer client.Close()
	q := NewRedisQueue(client)
	ctx := context.Background()

	t.Run("push then pop", func(t *testing.T) {
		book := testBook()
		event := BookEvent{Kind: BookCreated, BookID: book.ID, Book: &book, RequestID: "r:test", OccurredAt: NewMockClocker().Now()}
		require.NoError(t, q.Push(ctx, CreateQueue, event))

		qid, got, err := q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
		require.NoError(t, err)
		assert.Equal(t, CreateQueue, qid)
		assert.Equal(t, event.Kind, got.Kind)
		assert.Equal(t, event.RequestID, got.RequestID)
		require.NotNil(t, got.Book)
		assert.Equal(t, book.Title, got.Book.Title)
		assert.True(t, event.OccurredAt.Equal(got.OccurredAt))
	})

	t.Run("pop honors ctx", func(t *testing.T) {
		tctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, _, err := q.Pop(tctx, DeleteQueue)
		assert.Error(t, err)
	})

	t.Run("consumer drains into bolt journal", func(t *testing.T) {
		bj := newTestBoltJournal(t)
		require.NoError(t, q.Push(ctx, UpdateQueue, testEvent(BookUpdated, 5)))

		cctx, cancel := context.WithCancel(ctx)
		exited := make(chan error, 1)
		go func() {
			exited <- NewJournalConsumer(zap.NewNop(), q, bj).Consume(cctx, CreateQueue, UpdateQueue, DeleteQueue)
		}()

		assert.Eventually(t, func() bool {
			entries, err := bj.List(ctx, 0, 10)
			return err == nil && len(entries) == 1 && entries[0].Event.BookID == 5
		}, 5*time.Second, 50*time.Millisecond)
		cancel()
		assert.NoError(t, <-exited)
	})
}

func TestGetRedisClient_Unreachable(t *testing.T) {
	config := &Config{Redis: RedisConfig{Host: "127.0.0.1", Port: "1", DialTimeout: 100 * time.Millisecond}}
	client, err := GetRedisClient(config)
	assert.Error(t, err)
	if client != nil {
		_ = client.Close()
	}
}
