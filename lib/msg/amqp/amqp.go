// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/msg"
)

// Exchange is the topic exchange the change events are published to. Routing keys are chainId.type.address.
const Exchange = "pe"

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	mu   sync.Mutex // guards ch, an amqp channel must not be used concurrently
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	r := Amqp{}

	var err error
	if r.conn, err = amqp.Dial(uri); err != nil {
		return nil, err
	}

	log.Info("Connected to message broker", zap.String("uri", uri))

	return &r, nil
}

// Setup obtains an amqp channel and declares the message broker exchange "pe" ("profiler events"), where the
// service publishes the change events of the subscribed addresses.
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	return channel.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.mu.Lock()
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Warne("Error closing amqp.Channel", err)
		}

		r.ch = nil
	}
	r.mu.Unlock()

	return r.conn.Close()
}

// SendEvent publishes a change event to the "pe" exchange
func (r *Amqp) SendEvent(e msg.Event) (err error) {
	if e.Time == 0 {
		e.Time = time.Now().Unix()
	}

	// marshal to JSON
	var jsonDoc []byte
	if jsonDoc, err = json.Marshal(e); err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return
		}
	}

	m := amqp.Publishing{
		Headers:     amqp.Table{"x-event-name": e.ChainID + "." + e.Address},
		Body:        jsonDoc,
		ContentType: "application/json",
		Timestamp:   time.Unix(e.Time, 0),
	}

	if err = r.ch.Publish(Exchange, e.ChainID+"."+e.Type+"."+e.Address, false, false, m); err != nil {
		log.Warn("Error sending change event to message broker", zap.String("chainId", e.ChainID), zap.Error(err))
		// a failed publish closes the channel, get a new one next time
		r.ch = nil
	}

	return
}
