// Package publisher delivers desk events to an MQTT broker.
package publisher

import "context"

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
