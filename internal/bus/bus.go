// Package bus connects channels to the request pipeline: channels publish
// inbound messages, the gateway publishes replies, and DispatchOutbound
// routes each reply to the channel it names.
package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/jarvis/internal/logging"
)

type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
	log         zerolog.Logger
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
		log:         logging.For("bus"),
	}
}

// SubscribeOutbound registers the sender for one channel name, replacing any
// previous one.
func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

// PublishInbound queues msg for the pipeline. It gives up when ctx ends.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) bool {
	select {
	case b.Inbound <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// PublishOutbound queues msg for delivery. It gives up when ctx ends.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) bool {
	select {
	case b.Outbound <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// DispatchOutbound delivers outbound messages until ctx is done. Messages
// for channels without a subscriber are logged and dropped.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn, ok := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			if !ok {
				b.log.Warn().Str("channel", msg.Channel).Msg("no subscriber for outbound message")
				continue
			}
			fn(msg)
		case <-ctx.Done():
			return nil
		}
	}
}
