package notice

import (
	"context"
	"sync"
	"time"
)

// Board keeps at most one timed message per scope.
type Board interface {
	Post(ctx context.Context, scope, text string, ttl time.Duration) error
	Current(ctx context.Context, scope string) (string, error)
	Clear(ctx context.Context, scope string) error
	Close() error
}

type message struct {
	text      string
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryBoard holds messages in process. A newer post replaces the older one
// and cancels its expiry; Close cancels every pending expiry.
type MemoryBoard struct {
	mu       sync.Mutex
	messages map[string]*message
	closed   bool
	now      func() time.Time
}

func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{
		messages: make(map[string]*message),
		now:      time.Now,
	}
}

func (b *MemoryBoard) Post(_ context.Context, scope, text string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if prev, ok := b.messages[scope]; ok {
		prev.timer.Stop()
	}

	msg := &message{text: text, expiresAt: b.now().Add(ttl)}
	msg.timer = time.AfterFunc(ttl, func() { b.expire(scope, msg) })
	b.messages[scope] = msg
	return nil
}

func (b *MemoryBoard) Current(_ context.Context, scope string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.messages[scope]
	if !ok || !b.now().Before(msg.expiresAt) {
		return "", nil
	}
	return msg.text, nil
}

// Clear drops the message of scope and cancels its expiry.
func (b *MemoryBoard) Clear(_ context.Context, scope string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg, ok := b.messages[scope]; ok {
		msg.timer.Stop()
		delete(b.messages, scope)
	}
	return nil
}

func (b *MemoryBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for scope, msg := range b.messages {
		msg.timer.Stop()
		delete(b.messages, scope)
	}
	b.closed = true
	return nil
}

func (b *MemoryBoard) expire(scope string, msg *message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.messages[scope] == msg {
		delete(b.messages, scope)
	}
}

var _ Board = (*MemoryBoard)(nil)
