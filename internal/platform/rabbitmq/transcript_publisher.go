package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"companion-ai/internal/model"
)

// TranscriptPublisher sends transcript lines to the archive queue. One AMQP
// channel is reused and reopened after a failure.
type TranscriptPublisher struct {
	conn      *amqp.Connection
	queueName string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewTranscriptPublisher(conn *amqp.Connection, queueName string) *TranscriptPublisher {
	return &TranscriptPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *TranscriptPublisher) Publish(ctx context.Context, line model.ArchivedMessage) error {
	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal transcript payload failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    line.MessageID,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish transcript failed: %w", err)
	}
	return nil
}

func (p *TranscriptPublisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	if err := DeclareTranscriptQueue(ch, p.queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *TranscriptPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

// DeclareTranscriptQueue is shared by the publisher and the archive worker so
// both sides agree on queue arguments.
func DeclareTranscriptQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return nil
}
