package messaging

import "time"

type MessageBuilder struct {
	message Message
}

func NewMessage(sender, recipient string, messageType MessageType, content any) *MessageBuilder {
	return &MessageBuilder{
		message: Message{
			ID:          generateID(),
			SenderID:    sender,
			RecipientID: recipient,
			Type:        messageType,
			Content:     content,
			Timestamp:   time.Now(),
			Priority:    PriorityNormal,
		},
	}
}

func NewTaskRequest(sender, recipient string, content any) *MessageBuilder {
	return NewMessage(sender, recipient, MessageTypeTaskRequest, content)
}

func NewTaskResponse(sender, recipient string, content any) *MessageBuilder {
	return NewMessage(sender, recipient, MessageTypeTaskResponse, content)
}

// NewStatusUpdate builds a broadcast status snapshot.
func NewStatusUpdate(sender string, content any) *MessageBuilder {
	return NewMessage(sender, "", MessageTypeStatusUpdate, content).Priority(PriorityLow)
}

func NewCoordination(sender, recipient string, content any) *MessageBuilder {
	return NewMessage(sender, recipient, MessageTypeCoordination, content)
}

// NewAlert builds a broadcast alert; callers set priority from severity.
func NewAlert(sender string, content any) *MessageBuilder {
	return NewMessage(sender, "", MessageTypeAlert, content).Priority(PriorityHigh)
}

// NewDataSharing builds a broadcast data offer.
func NewDataSharing(sender string, content any) *MessageBuilder {
	return NewMessage(sender, "", MessageTypeDataSharing, content)
}

func (mb *MessageBuilder) Recipient(recipient string) *MessageBuilder {
	mb.message.RecipientID = recipient
	return mb
}

func (mb *MessageBuilder) Priority(priority Priority) *MessageBuilder {
	mb.message.Priority = priority.Clamp()
	return mb
}

func (mb *MessageBuilder) RequiresResponse() *MessageBuilder {
	mb.message.RequiresResponse = true
	return mb
}

func (mb *MessageBuilder) Build() Message {
	return mb.message
}
