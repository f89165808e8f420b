package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeTaskRequest  MessageType = "task_request"
	MessageTypeTaskResponse MessageType = "task_response"
	MessageTypeStatusUpdate MessageType = "status_update"
	MessageTypeCoordination MessageType = "coordination"
	MessageTypeAlert        MessageType = "alert"
	MessageTypeDataSharing  MessageType = "data_sharing"
)

// IsValid reports whether t is one of the defined message types.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeTaskRequest, MessageTypeTaskResponse, MessageTypeStatusUpdate,
		MessageTypeCoordination, MessageTypeAlert, MessageTypeDataSharing:
		return true
	}
	return false
}

// Priority orders messages from 1 (lowest) to 10 (highest).
type Priority int

const (
	PriorityMin      Priority = 1
	PriorityLow      Priority = 2
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 8
	PriorityCritical Priority = 9
	PriorityMax      Priority = 10
)

// Clamp returns p forced into the valid 1..10 range.
func (p Priority) Clamp() Priority {
	if p < PriorityMin {
		return PriorityMin
	}
	if p > PriorityMax {
		return PriorityMax
	}
	return p
}

type Message struct {
	ID               string      `json:"id"`
	SenderID         string      `json:"sender_id"`
	RecipientID      string      `json:"recipient_id,omitempty"`
	Type             MessageType `json:"type"`
	Content          any         `json:"content"`
	Timestamp        time.Time   `json:"timestamp"`
	Priority         Priority    `json:"priority"`
	RequiresResponse bool        `json:"requires_response,omitempty"`
}

func (msg Message) IsBroadcast() bool {
	return msg.RecipientID == ""
}

// Involves reports whether agentID sent or was addressed by the message.
func (msg Message) Involves(agentID string) bool {
	return msg.SenderID == agentID || msg.RecipientID == agentID
}

// Validate checks the envelope fields required for routing.
func (msg Message) Validate() error {
	if msg.ID == "" {
		return ErrMissingID
	}
	if msg.SenderID == "" {
		return ErrMissingSender
	}
	if !msg.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	if msg.Priority < PriorityMin || msg.Priority > PriorityMax {
		return fmt.Errorf("%w: %d", ErrPriorityRange, msg.Priority)
	}
	return nil
}

func (msg Message) String() string {
	to := msg.RecipientID
	if to == "" {
		to = "*"
	}
	return fmt.Sprintf(
		"Message{ID: %s, From: %s, To: %s, Type: %s}",
		msg.ID,
		msg.SenderID,
		to,
		msg.Type,
	)
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
