package models

type RoomKind string
type MessageKind string
type PresenceStatus string

const (
	RoomKindTopic  RoomKind = "topic"
	RoomKindRegion RoomKind = "region"

	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"

	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

func (k RoomKind) IsValid() bool {
	switch k {
	case RoomKindTopic, RoomKindRegion:
		return true
	}
	return false
}

func (k MessageKind) IsValid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	}
	return false
}

func (s PresenceStatus) IsValid() bool {
	return s == PresenceOffline || s.IsLive()
}

// IsLive reports whether the status counts toward a room's online participants.
func (s PresenceStatus) IsLive() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy:
		return true
	}
	return false
}
