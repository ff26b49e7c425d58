// Package msg defines the interface for different message brokers. The service publishes to the broker every change
// event pushed to its websocket clients so other services can follow the subscribed addresses.
package msg

// Event is the message published for every change detected on a subscribed address.
type Event struct {
	ChainID string      `json:"chainId"`
	Address string      `json:"address"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Time    int64       `json:"time"`
}

// MsgBroker defines the methods a message broker must implement.
type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// SendEvent publishes a change event.
	SendEvent(e Event) error
}
