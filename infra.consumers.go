package main

import (
	"context"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// journalConsumer drains the book events queues into the journal.
type journalConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	journal BookJournal
}

func NewJournalConsumer(logger *zap.Logger, q Queuer, journal BookJournal) Consumer {
	return &journalConsumer{logger: logger, queue: q, journal: journal}
}

// Consume runs until ctx is done.
func (jc *journalConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		qid, event, err := jc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			jc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			jc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		switch qid {
		case CreateQueue, UpdateQueue, DeleteQueue:
			seq, err := jc.journal.Append(ctx, event)
			if err != nil {
				jc.logger.Error("consumer: failed to journal event",
					zap.String("qid", qid),
					zap.String("event.kind", event.Kind),
					zap.Int64("book.id", event.BookID),
					zap.Error(err),
				)
				continue
			}
			jc.logger.Debug("consumer: event journaled",
				zap.Uint64("journal.sequence", seq),
				zap.String("event.kind", event.Kind),
				zap.Int64("book.id", event.BookID),
			)
		default:
			jc.logger.Warn("consumer: received event on unknown queue id", zap.String("qid", qid), zap.Any("event", event))
		}
	}
}
