package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bareSession is enough for manager tests; it never handles frames.
func bareSession(buffer int) *Session {
	return &Session{
		ID:   "test",
		ctx:  context.Background(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func TestManager_PublishSkipsExcludedSession(t *testing.T) {
	m := NewManager(nil)
	a, b := bareSession(4), bareSession(4)
	m.Register(a)
	m.Register(b)
	m.Subscribe(a, RoomChannel(1))
	m.Subscribe(b, RoomChannel(1))

	m.Publish(context.Background(), RoomChannel(1), EventUserTyping, TypingEvent{UserID: 1}, a)

	assert.Len(t, a.send, 0)
	assert.Len(t, b.send, 1)
}

func TestManager_FullQueueDropsForThatSessionOnly(t *testing.T) {
	m := NewManager(nil)
	slow, fast := bareSession(1), bareSession(8)
	m.Register(slow)
	m.Register(fast)
	m.Subscribe(slow, RoomChannel(1))
	m.Subscribe(fast, RoomChannel(1))

	for i := 0; i < 3; i++ {
		m.Publish(context.Background(), RoomChannel(1), EventNewMessage, map[string]int{"n": i}, nil)
	}

	assert.Len(t, slow.send, 1)
	assert.Len(t, fast.send, 3)
}

func TestManager_UnregisterReturnsRoomsHeldElsewhere(t *testing.T) {
	m := NewManager(nil)
	first, second := bareSession(1), bareSession(1)
	for _, s := range []*Session{first, second} {
		m.Register(s)
		m.BindUser(s, 5)
		m.Subscribe(s, UserChannel(5))
	}
	m.Subscribe(first, RoomChannel(1))
	m.Subscribe(first, RoomChannel(2))
	m.Subscribe(second, RoomChannel(2))

	keep := m.Unregister(first, 5)
	assert.Equal(t, map[uint]struct{}{2: {}}, keep)
	assert.False(t, m.IsSubscribed(first, RoomChannel(2)))

	keep = m.Unregister(second, 5)
	assert.Empty(t, keep)
	assert.Zero(t, m.SessionCount())
}

func TestManager_SubscribeUser(t *testing.T) {
	m := NewManager(nil)
	a, b := bareSession(1), bareSession(1)
	for _, s := range []*Session{a, b} {
		m.Register(s)
		m.BindUser(s, 9)
	}

	m.SubscribeUser(9, RoomChannel(3))
	assert.True(t, m.IsSubscribed(a, RoomChannel(3)))
	assert.True(t, m.IsSubscribed(b, RoomChannel(3)))

	m.UnsubscribeUser(9, RoomChannel(3))
	assert.False(t, m.IsSubscribed(a, RoomChannel(3)))
}

func TestManager_ClosedSessionReceivesNothing(t *testing.T) {
	m := NewManager(nil)
	s := bareSession(4)
	m.Register(s)
	m.Subscribe(s, RoomChannel(1))

	m.CloseAll()
	m.Publish(context.Background(), RoomChannel(1), EventNewMessage, nil, nil)

	assert.Len(t, s.send, 0)
	select {
	case <-s.Done():
	default:
		t.Fatal("session transport was not closed")
	}
}

func TestParseRoomChannel(t *testing.T) {
	id, ok := parseRoomChannel(RoomChannel(42))
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	_, ok = parseRoomChannel(UserChannel(42))
	assert.False(t, ok)
	_, ok = parseRoomChannel("room:abc")
	assert.False(t, ok)
}

type fakeRelay struct {
	mu        sync.Mutex
	published []RelayMessage
	inbound   chan RelayMessage
}

func (r *fakeRelay) Publish(_ context.Context, msg RelayMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, msg)
	return nil
}

func (r *fakeRelay) Subscribe(ctx context.Context, handle func(RelayMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.inbound:
			handle(msg)
		}
	}
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

func TestManager_RelaysAcrossInstances(t *testing.T) {
	relay := &fakeRelay{inbound: make(chan RelayMessage, 4)}
	m := NewManager(relay)
	s := bareSession(4)
	m.Register(s)
	m.Subscribe(s, RoomChannel(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	m.Publish(ctx, RoomChannel(1), EventNewMessage, map[string]string{"content": "local"}, nil)
	require.Eventually(t, func() bool { return relay.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Len(t, s.send, 1)

	// Own frames coming back are ignored; foreign ones are delivered.
	relay.inbound <- RelayMessage{Origin: m.instanceID, Channel: RoomChannel(1), Frame: []byte(`{"event":"x"}`)}
	relay.inbound <- RelayMessage{Origin: "other", Channel: RoomChannel(1), Frame: []byte(`{"event":"y"}`)}
	require.Eventually(t, func() bool { return len(s.send) == 2 }, time.Second, 10*time.Millisecond)

	<-s.send
	assert.JSONEq(t, `{"event":"y"}`, string(<-s.send))

	cancel()
	require.NoError(t, <-done)
}
