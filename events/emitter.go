package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crashengine/game"

	"github.com/nats-io/nats.go"
)

const RoundSettled = "round.settled"

type RoundEvent struct {
	Type      string           `json:"type"`
	Data      game.RoundResult `json:"data"`
	Timestamp int64            `json:"timestamp"`
}

// Publisher is the subset of a NATS connection the emitter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Emitter publishes settled rounds to a NATS subject.
type Emitter struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
}

func NewEmitter(natsURL, subject string) (*Emitter, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("crashengine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Emitter{pub: conn, conn: conn, subject: subject}, nil
}

// NewEmitterWith publishes through pub instead of a dialled connection.
func NewEmitterWith(pub Publisher, subject string) *Emitter {
	return &Emitter{pub: pub, subject: subject}
}

// Record implements the engine's result sink.
func (e *Emitter) Record(ctx context.Context, res game.RoundResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.Emit(RoundEvent{
		Type:      RoundSettled,
		Data:      res,
		Timestamp: res.Entry.EndedAt.UnixMilli(),
	})
}

func (e *Emitter) Emit(event RoundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.pub.Publish(e.subject, data)
}

func (e *Emitter) Close() {
	if e.conn != nil {
		e.conn.Drain()
	}
}
