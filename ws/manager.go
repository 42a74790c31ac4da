package ws

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"creatorhub/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	roomPrefix = "room:"
	userPrefix = "user:"

	relayBuffer = 1024
)

func RoomChannel(roomID uint) string {
	return roomPrefix + strconv.FormatUint(uint64(roomID), 10)
}

func UserChannel(userID uint) string {
	return userPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Manager tracks connected sessions and their channel subscriptions. Channels
// are room:<id> and user:<id>. Delivery never blocks on a slow session.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	users    map[uint]map[*Session]struct{}

	instanceID string
	relay      Relay
	outbox     chan RelayMessage
}

// NewManager builds a hub. relay may be nil for a single instance.
func NewManager(relay Relay) *Manager {
	return &Manager{
		channels:   make(map[string]map[*Session]struct{}),
		sessions:   make(map[*Session]map[string]struct{}),
		users:      make(map[uint]map[*Session]struct{}),
		instanceID: uuid.NewString(),
		relay:      relay,
		outbox:     make(chan RelayMessage, relayBuffer),
	}
}

func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s]; !ok {
		m.sessions[s] = make(map[string]struct{})
	}
}

// BindUser records that s belongs to userID.
func (m *Manager) BindUser(s *Session, userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.users[userID]
	if !ok {
		set = make(map[*Session]struct{})
		m.users[userID] = set
	}
	set[s] = struct{}{}
}

// Unregister drops s from every channel. It returns the rooms still held by
// the user's other sessions on this instance; the check and the removal are
// atomic so two closing sessions never both keep a room.
func (m *Manager) Unregister(s *Session, userID uint) map[uint]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	for channel := range m.sessions[s] {
		m.removeLocked(s, channel)
	}
	delete(m.sessions, s)

	keep := make(map[uint]struct{})
	set, ok := m.users[userID]
	if !ok {
		return keep
	}
	delete(set, s)
	if len(set) == 0 {
		delete(m.users, userID)
		return keep
	}

	for other := range set {
		for channel := range m.sessions[other] {
			if roomID, ok := parseRoomChannel(channel); ok {
				keep[roomID] = struct{}{}
			}
		}
	}
	return keep
}

func (m *Manager) Subscribe(s *Session, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(s, channel)
}

// SubscribeUser subscribes every local session of userID, used when presence
// changes outside a socket (HTTP join).
func (m *Manager) SubscribeUser(userID uint, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for s := range m.users[userID] {
		m.addLocked(s, channel)
	}
}

func (m *Manager) UnsubscribeUser(userID uint, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for s := range m.users[userID] {
		m.removeLocked(s, channel)
	}
}

func (m *Manager) IsSubscribed(s *Session, channel string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.channels[channel][s]
	return ok
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) addLocked(s *Session, channel string) {
	held, ok := m.sessions[s]
	if !ok {
		// Closed or never registered.
		return
	}
	held[channel] = struct{}{}

	members, ok := m.channels[channel]
	if !ok {
		members = make(map[*Session]struct{})
		m.channels[channel] = members
	}
	members[s] = struct{}{}
}

func (m *Manager) removeLocked(s *Session, channel string) {
	delete(m.sessions[s], channel)
	if members, ok := m.channels[channel]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(m.channels, channel)
		}
	}
}

// Publish delivers event to every subscriber of channel except the given
// session, here and, through the relay, on other instances.
func (m *Manager) Publish(ctx context.Context, channel, event string, data any, except *Session) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.CtxWithError(ctx, "failed to encode ws frame", err, "event", event)
		return
	}

	m.deliver(channel, frame, except)

	if m.relay == nil {
		return
	}
	select {
	case m.outbox <- RelayMessage{Origin: m.instanceID, Channel: channel, Frame: frame}:
	default:
		logger.CtxWarn(ctx, "relay outbox full, frame not relayed", "channel", channel, "event", event)
	}
}

func (m *Manager) deliver(channel string, frame []byte, except *Session) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for s := range m.channels[channel] {
		if s == except {
			continue
		}
		s.enqueue(frame)
	}
}

func (m *Manager) receive(msg RelayMessage) {
	if msg.Origin == m.instanceID {
		return
	}
	m.deliver(msg.Channel, msg.Frame, nil)
}

// Run pumps frames through the relay until ctx is done. Without a relay it
// just waits.
func (m *Manager) Run(ctx context.Context) error {
	if m.relay == nil {
		<-ctx.Done()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.relay.Subscribe(gctx, m.receive)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-m.outbox:
				if err := m.relay.Publish(gctx, msg); err != nil {
					logger.CtxWarn(gctx, "relay publish failed", "channel", msg.Channel, "error", err)
				}
			}
		}
	})
	return g.Wait()
}

// CloseAll stops every session's transport. Cleanup runs on each read loop.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.closeTransport()
	}
}

func parseRoomChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, roomPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// RelayMessage is one frame crossing instances.
type RelayMessage struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Frame   json.RawMessage `json:"frame"`
}
