package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context) error
}

// mirrorConsumer replays queued catalogue changes into a secondary storage.
type mirrorConsumer struct {
	logger *zap.Logger
	queue  Queuer
	repo   BookStorage
}

func NewMirrorConsumer(logger *zap.Logger, q Queuer, repo BookStorage) Consumer {
	return &mirrorConsumer{logger, q, repo}
}

// Consume pops changes until ctx is done. Failures are logged and skipped.
func (mc *mirrorConsumer) Consume(ctx context.Context) error {
	for {
		op, book, err := mc.queue.Pop(ctx)
		if err != nil && ctx.Err() != nil {
			mc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			mc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		mc.apply(ctx, op, book)
	}
}

func (mc *mirrorConsumer) apply(ctx context.Context, op string, book Book) {
	switch op {
	case CreateChange, UpdateChange:
		if _, err := mc.repo.Save(ctx, book); err != nil {
			mc.logger.Error("consumer: failed to save", zap.String("op", op), zap.Int64("book.isbn", book.ISBN), zap.Error(err))
		}
	case DeleteChange:
		if err := mc.repo.DeleteByID(ctx, book.ISBN); err != nil && !errors.Is(err, ErrBookNotFound) {
			mc.logger.Error("consumer: failed to delete", zap.Int64("book.isbn", book.ISBN), zap.Error(err))
		}
	default:
		mc.logger.Warn("consumer: received unknown change", zap.String("op", op), zap.Int64("book.isbn", book.ISBN))
	}
}
