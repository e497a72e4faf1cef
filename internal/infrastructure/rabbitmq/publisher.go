package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ ledger.EventPublisher = (*Publisher)(nil)

// channel subconjunto de *amqp.Channel usado para publicar.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publica los eventos confirmados del libro en un exchange topic.
// Routing key: ledger.<tipo en minúsculas>, por ejemplo ledger.transfer_in.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// NewPublisher conecta, abre un canal y declara el exchange (topic, durable).
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange %q: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Close cierra canal y conexión.
func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// EventMessage cuerpo JSON publicado por cada evento.
type EventMessage struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	BranchID  string    `json:"branch_id"`
	ProductID string    `json:"product_id"`
	Delta     string    `json:"delta"`
	Reference string    `json:"reference,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Publish envía un mensaje por evento, en orden de seq. Se detiene en el primer error.
func (p *Publisher) Publish(ctx context.Context, events []entity.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range events {
		key, msg, err := buildMessage(ev)
		if err != nil {
			return err
		}
		if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
			return fmt.Errorf("publicar evento %s: %w", ev.ID, err)
		}
	}
	return nil
}

// RoutingKey clave de ruteo para un tipo de evento.
func RoutingKey(kind entity.LedgerEventKind) string {
	return "ledger." + strings.ToLower(string(kind))
}

func buildMessage(ev entity.LedgerEvent) (string, amqp.Publishing, error) {
	body, err := json.Marshal(EventMessage{
		ID:        ev.ID,
		Seq:       ev.Seq,
		Kind:      string(ev.Kind),
		BranchID:  ev.BranchID,
		ProductID: ev.ProductID,
		Delta:     ev.Delta.String(),
		Reference: ev.Reference,
		CreatedBy: ev.CreatedBy,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("serializar evento %s: %w", ev.ID, err)
	}
	return RoutingKey(ev.Kind), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.CreatedAt,
		Type:         string(ev.Kind),
		Body:         body,
	}, nil
}
