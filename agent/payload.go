package agent

import (
	"fmt"

	"github.com/ensemble-systems/ensemble/messaging"
)

// StatusFromMessage extracts and validates the Status carried by a
// status_update message. A status claiming an agent other than the
// message's sender is rejected.
func StatusFromMessage(msg messaging.Message) (Status, error) {
	if msg.Type != messaging.MessageTypeStatusUpdate {
		return Status{}, fmt.Errorf("%w: %s", ErrWrongMessageType, msg.Type)
	}
	status, ok := msg.Content.(Status)
	if !ok {
		return Status{}, fmt.Errorf("%w: status_update content is %T", ErrMalformedPayload, msg.Content)
	}
	if status.AgentID != msg.SenderID {
		return Status{}, fmt.Errorf("%w: status for %q sent by %q", ErrMalformedPayload, status.AgentID, msg.SenderID)
	}
	if !status.State.IsValid() {
		return Status{}, fmt.Errorf("%w: unknown state %q", ErrMalformedPayload, status.State)
	}
	return status, nil
}

// TaskFromMessage extracts and validates the Task carried by a
// task_request message.
func TaskFromMessage(msg messaging.Message) (Task, error) {
	if msg.Type != messaging.MessageTypeTaskRequest {
		return Task{}, fmt.Errorf("%w: %s", ErrWrongMessageType, msg.Type)
	}
	task, ok := msg.Content.(Task)
	if !ok {
		return Task{}, fmt.Errorf("%w: task_request content is %T", ErrMalformedPayload, msg.Content)
	}
	if task.ID == "" {
		return Task{}, fmt.Errorf("%w: task has no id", ErrMalformedPayload)
	}
	if task.Type == "" {
		return Task{}, fmt.Errorf("%w: task has no type", ErrMalformedPayload)
	}
	return task, nil
}

// ResultFromMessage extracts the Result carried by a task_response message.
func ResultFromMessage(msg messaging.Message) (Result, error) {
	if msg.Type != messaging.MessageTypeTaskResponse {
		return Result{}, fmt.Errorf("%w: %s", ErrWrongMessageType, msg.Type)
	}
	result, ok := msg.Content.(Result)
	if !ok {
		return Result{}, fmt.Errorf("%w: task_response content is %T", ErrMalformedPayload, msg.Content)
	}
	return result, nil
}

// CoordinationFromMessage extracts the payload carried by a coordination
// message.
func CoordinationFromMessage(msg messaging.Message) (CoordinationPayload, error) {
	if msg.Type != messaging.MessageTypeCoordination {
		return nil, fmt.Errorf("%w: %s", ErrWrongMessageType, msg.Type)
	}
	payload, ok := msg.Content.(CoordinationPayload)
	if !ok {
		return nil, fmt.Errorf("%w: coordination content is %T", ErrMalformedPayload, msg.Content)
	}
	return payload, nil
}

// AlertFromMessage extracts the Alert carried by an alert message.
func AlertFromMessage(msg messaging.Message) (Alert, error) {
	if msg.Type != messaging.MessageTypeAlert {
		return Alert{}, fmt.Errorf("%w: %s", ErrWrongMessageType, msg.Type)
	}
	alert, ok := msg.Content.(Alert)
	if !ok {
		return Alert{}, fmt.Errorf("%w: alert content is %T", ErrMalformedPayload, msg.Content)
	}
	return alert, nil
}
