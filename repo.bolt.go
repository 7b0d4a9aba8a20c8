package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// JournalEntry is a book event with its position in the journal.
type JournalEntry struct {
	Sequence uint64    `json:"sequence"`
	Event    BookEvent `json:"event"`
}

// BookJournal is an append-only log of book changes.
type BookJournal interface {
	Append(ctx context.Context, event BookEvent) (uint64, error)
	List(ctx context.Context, after uint64, limit int) ([]JournalEntry, error)
	Close() error
}

var _ BookJournal = (*boltBookJournal)(nil)

type boltBookJournal struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(config.BoltDB.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal folder: %w", err)
	}
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %w", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %w", err)
	}
	return db, nil
}

// NewBoltBookJournal provides an instance of bolt-based book journal.
func NewBoltBookJournal(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) *boltBookJournal {
	return &boltBookJournal{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// Close shuts down the bolt-based journal.
func (bj *boltBookJournal) Close() error {
	return bj.client.Close()
}

// Append stores the event under the next bucket sequence and returns it.
func (bj *boltBookJournal) Append(_ context.Context, event BookEvent) (uint64, error) {
	data, err := jsoniter.ConfigFastest.Marshal(event)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = bj.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bj.config.BucketName))
		next, errS := b.NextSequence()
		if errS != nil {
			return errS
		}
		seq = next
		return b.Put(sequenceKey(seq), data)
	})
	return seq, err
}

// List returns at most limit entries stored after the given sequence.
func (bj *boltBookJournal) List(_ context.Context, after uint64, limit int) ([]JournalEntry, error) {
	tx, err := bj.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := tx.Bucket([]byte(bj.config.BucketName)).Cursor()
	entries := []JournalEntry{}
	for k, v := c.Seek(sequenceKey(after + 1)); k != nil && len(entries) < limit; k, v = c.Next() {
		var event BookEvent
		if err = jsoniter.ConfigFastest.Unmarshal(v, &event); err != nil {
			return nil, err
		}
		entries = append(entries, JournalEntry{Sequence: binary.BigEndian.Uint64(k), Event: event})
	}
	return entries, nil
}

// sequenceKey encodes a sequence so that keys sort in insertion order.
func sequenceKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
