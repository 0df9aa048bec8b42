package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/microlearn/auth-service/app/service"
)

// Consumer drains the email queue and hands each message to a Mailer. It
// reconnects with backoff and only stops when ctx is cancelled. Messages
// that fail to deliver are rejected without requeue so a broken recipient
// cannot wedge the queue.
type Consumer struct {
	url    string
	queue  string
	mailer service.Mailer
}

func NewConsumer(url, queue string, mailer service.Mailer) *Consumer {
	return &Consumer{url: url, queue: queue, mailer: mailer}
}

func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			logrus.WithError(err).WithField("backoff", backoff.String()).Warn("mailworker: broker dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Warn("mailworker: consume loop ended, reconnecting")
		}
		_ = conn.Close()
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		logrus.WithError(err).Warn("mailworker: set QoS failed")
	}

	if _, err = ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				logrus.WithError(err).Error("mailworker: delivery failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var email service.Email
	if err := json.Unmarshal(body, &email); err != nil {
		return fmt.Errorf("decode email event: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.mailer.Send(sendCtx, email); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"to":      email.To,
		"subject": email.Subject,
	}).Info("mailworker: email delivered")
	return nil
}
