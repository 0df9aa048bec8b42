// Package queue carries outbound email through RabbitMQ so delivery is
// fully decoupled from the request path: the auth service publishes an
// event and the mailworker command delivers it.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/microlearn/auth-service/app/service"
)

// Publisher implements service.Mailer by publishing persistent JSON
// messages to a durable queue. Each publish uses a short-lived connection;
// auth flows send mail rarely enough that connection reuse is not worth a
// reconnect state machine here.
type Publisher struct {
	url   string
	queue string
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

func (p *Publisher) Send(ctx context.Context, email service.Email) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		logrus.WithError(err).Error("mail queue: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Error("mail queue: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err = ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		logrus.WithError(err).Error("mail queue: queue declare failed")
		return err
	}

	body, err := json.Marshal(email)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
