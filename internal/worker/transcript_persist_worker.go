package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"lawchat/internal/model"
	"lawchat/internal/platform/rabbitmq"
)

// TranscriptApplier writes one log mutation into the archive.
type TranscriptApplier interface {
	Apply(ctx context.Context, event model.TranscriptEvent) error
}

// TranscriptPersistWorker drains the transcript queue into the archive.
// Undecodable or unpersistable deliveries are dropped (Nack without requeue).
type TranscriptPersistWorker struct {
	conn      *amqp.Connection
	archive   TranscriptApplier
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTranscriptPersistWorker(conn *amqp.Connection, archive TranscriptApplier, queueName string, logger *slog.Logger) *TranscriptPersistWorker {
	return &TranscriptPersistWorker{
		conn:      conn,
		archive:   archive,
		queueName: queueName,
		logger:    logger.With("component", "transcript_worker", "queue", queueName),
	}
}

func (w *TranscriptPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	// one at a time keeps per-client events in publish order
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.logger.Info("transcript worker started")
	return nil
}

func (w *TranscriptPersistWorker) handle(ctx context.Context, d amqp.Delivery) {
	event, err := DecodeTranscriptEvent(d.Body)
	if err != nil {
		w.logger.Warn("decode transcript event failed", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.archive.Apply(ctx, event); err != nil {
		w.logger.Warn("persist transcript event failed",
			"client_id", event.ClientID,
			"kind", event.Kind,
			"seq", event.Seq,
			"error", err,
		)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

func (w *TranscriptPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// DecodeTranscriptEvent parses a queued event and rejects ones that cannot
// be applied.
func DecodeTranscriptEvent(body []byte) (model.TranscriptEvent, error) {
	var event model.TranscriptEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("unmarshal transcript event failed: %w", err)
	}
	if event.ClientID == "" {
		return event, fmt.Errorf("transcript event without client id")
	}
	switch event.Kind {
	case model.TranscriptAppend:
		if event.Message == nil {
			return event, fmt.Errorf("append event without message")
		}
	case model.TranscriptFeedback:
		if event.Feedback == nil {
			return event, fmt.Errorf("feedback event without feedback")
		}
	case model.TranscriptClear:
	default:
		return event, fmt.Errorf("unknown transcript event kind %q", event.Kind)
	}
	return event, nil
}
