package sink

import (
	"fmt"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/ahwlsqja/proofchain/types"
)

// Event topics published on the bus.
const (
	TopicBlockCreated     = "block:created"
	TopicMiningStarted    = "mining:started"
	TopicMiningCompleted  = "mining:completed"
	TopicValidationResult = "validation:result"
)

// Bus fans every event out to all subscribed sinks, synchronously and in subscription order.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates a bus with the given sinks subscribed.
func NewBus(sinks ...Sink) (*Bus, error) {
	b := &Bus{bus: evbus.New()}
	for _, s := range sinks {
		if err := b.Subscribe(s); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Subscribe attaches s to every topic.
func (b *Bus) Subscribe(s Sink) error {
	handlers := map[string]interface{}{
		TopicBlockCreated:     s.BlockCreated,
		TopicMiningStarted:    s.MiningStarted,
		TopicMiningCompleted:  s.MiningCompleted,
		TopicValidationResult: s.ValidationResult,
	}
	for _, topic := range []string{TopicBlockCreated, TopicMiningStarted, TopicMiningCompleted, TopicValidationResult} {
		if err := b.bus.Subscribe(topic, handlers[topic]); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	return nil
}

// Subscribers reports whether any handler is attached to topic.
func (b *Bus) Subscribers(topic string) bool {
	return b.bus.HasCallback(topic)
}

func (b *Bus) BlockCreated(block *types.Block) {
	b.bus.Publish(TopicBlockCreated, block)
}

func (b *Bus) MiningStarted(index uint64, difficulty int) {
	b.bus.Publish(TopicMiningStarted, index, difficulty)
}

func (b *Bus) MiningCompleted(block *types.Block, elapsed time.Duration) {
	b.bus.Publish(TopicMiningCompleted, block, elapsed)
}

func (b *Bus) ValidationResult(valid bool) {
	b.bus.Publish(TopicValidationResult, valid)
}
