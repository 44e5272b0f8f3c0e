package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"companion-ai/internal/model"
	rabbitmqClient "companion-ai/internal/platform/rabbitmq"
)

var errMalformedLine = errors.New("malformed transcript line")

type TranscriptStore interface {
	Save(ctx context.Context, msg *model.ArchivedMessage) error
}

// TranscriptArchiveWorker drains the transcript queue into the archive store.
type TranscriptArchiveWorker struct {
	conn      *amqp.Connection
	store     TranscriptStore
	queueName string
	log       zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTranscriptArchiveWorker(conn *amqp.Connection, store TranscriptStore, queueName string, log zerolog.Logger) *TranscriptArchiveWorker {
	return &TranscriptArchiveWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log.With().Str("component", "transcript_archive").Logger(),
	}
}

func (w *TranscriptArchiveWorker) Start(ctx context.Context) error {
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
	if err := rabbitmqClient.DeclareTranscriptQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
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
					w.log.Warn().Msg("delivery channel closed")
					return
				}
				w.settle(d, w.handle(workerCtx, d.Body))
			}
		}
	}()

	w.log.Info().Str("queue", w.queueName).Msg("transcript archive worker started")
	return nil
}

// handle stores one delivery body.
func (w *TranscriptArchiveWorker) handle(ctx context.Context, body []byte) error {
	var line model.ArchivedMessage
	if err := json.Unmarshal(body, &line); err != nil {
		return fmt.Errorf("%w: %w", errMalformedLine, err)
	}
	if line.SessionID == "" || line.MessageID == "" {
		return fmt.Errorf("%w: missing session or message id", errMalformedLine)
	}
	line.ID = 0
	return w.store.Save(ctx, &line)
}

// settle acks stored lines, drops malformed ones and requeues store failures
// once before dropping them.
func (w *TranscriptArchiveWorker) settle(d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformedLine):
		w.log.Warn().Err(err).Msg("drop transcript line")
		_ = d.Nack(false, false)
	default:
		w.log.Error().Err(err).Bool("redelivered", d.Redelivered).Msg("archive transcript line failed")
		_ = d.Nack(false, !d.Redelivered)
	}
}

func (w *TranscriptArchiveWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
