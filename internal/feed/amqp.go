// internal/feed/amqp.go
package feed

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
)

// QueueName is the RabbitMQ queue carrying live-update events.
const QueueName = "campaign_events"

// AMQPFeed publishes events as JSON to a durable RabbitMQ queue so
// external consumers (dashboards, cmd/tail) can follow campaign
// progress in real time.
type AMQPFeed struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPFeed(url string) (*AMQPFeed, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(
		QueueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPFeed{conn: conn, ch: ch, queue: q.Name}, nil
}

func (f *AMQPFeed) Publish(ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.ch.Publish(
		"",      // exchange
		f.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (f *AMQPFeed) Close() error {
	if err := f.ch.Close(); err != nil {
		f.conn.Close()
		return err
	}
	return f.conn.Close()
}

var _ Feed = (*AMQPFeed)(nil)
