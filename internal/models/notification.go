package models

import "time"

type Channel string

const (
	ChannelSystem   Channel = "system"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSystem, ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

type NotificationTemplate struct {
	Code    string
	Channel Channel
	Subject string
	Body    string

	// Approved WhatsApp template name; empty means free-text send.
	ProviderTemplate string
	Language         string
}

type NotificationRecord struct {
	ID        uint64
	UserID    uint64
	Title     string
	Message   string
	Type      string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

type ActivityEntry struct {
	ID          uint64
	ActorID     uint64
	ActionType  string
	Description string
	CreatedAt   time.Time
}
