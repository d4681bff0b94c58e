package evolution

import (
	"strings"

	"github.com/ashureev/providata-intake/internal/identity"
)

// EventMessagesUpsert is the event name for new inbound messages.
const EventMessagesUpsert = "messages.upsert"

// WebhookPayload is the body Evolution API posts for webhook events.
type WebhookPayload struct {
	Event       string      `json:"event"`
	Instance    string      `json:"instance"`
	Data        MessageData `json:"data"`
	Destination string      `json:"destination,omitempty"`
	DateTime    string      `json:"date_time,omitempty"`
	Sender      string      `json:"sender,omitempty"`
	ServerURL   string      `json:"server_url,omitempty"`
	APIKey      string      `json:"apikey,omitempty"`
}

// MessageData is the message carried by a messages.upsert event.
type MessageData struct {
	Key              MessageKey `json:"key"`
	PushName         string     `json:"pushName,omitempty"`
	Message          *Message   `json:"message,omitempty"`
	MessageType      string     `json:"messageType,omitempty"`
	MessageTimestamp int64      `json:"messageTimestamp,omitempty"`
}

// MessageKey identifies a message and its chat.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// Message holds the content variants; only text variants are used.
type Message struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
}

// ExtendedTextMessage is a text message with formatting or a quote.
type ExtendedTextMessage struct {
	Text string `json:"text,omitempty"`
}

// SkipReason explains why an event is not handed to the dialogue engine.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipEvent     SkipReason = "unsupported_event"
	SkipFromMe    SkipReason = "from_me"
	SkipGroup     SkipReason = "group"
	SkipBroadcast SkipReason = "broadcast"
	SkipNoText    SkipReason = "no_text"
	SkipNoSender  SkipReason = "no_sender"
)

// Inbound is a text message ready for the dialogue engine.
type Inbound struct {
	MessageID string
	Identity  string
	Text      string
	PushName  string
}

// Extract filters noise and returns the text message carried by the payload.
func (p *WebhookPayload) Extract() (Inbound, SkipReason) {
	if p.Event != EventMessagesUpsert {
		return Inbound{}, SkipEvent
	}
	key := p.Data.Key
	if key.FromMe {
		return Inbound{}, SkipFromMe
	}
	if identity.IsGroup(key.RemoteJID) {
		return Inbound{}, SkipGroup
	}
	if identity.IsBroadcast(key.RemoteJID) {
		return Inbound{}, SkipBroadcast
	}

	text := p.Data.text()
	if strings.TrimSpace(text) == "" {
		return Inbound{}, SkipNoText
	}

	phone := identity.FromJID(key.RemoteJID)
	if phone == "" {
		return Inbound{}, SkipNoSender
	}

	return Inbound{
		MessageID: key.ID,
		Identity:  phone,
		Text:      text,
		PushName:  p.Data.PushName,
	}, SkipNone
}

func (d MessageData) text() string {
	if d.Message == nil {
		return ""
	}
	if d.Message.Conversation != "" {
		return d.Message.Conversation
	}
	if d.Message.ExtendedTextMessage != nil {
		return d.Message.ExtendedTextMessage.Text
	}
	return ""
}
