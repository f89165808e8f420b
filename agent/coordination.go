package agent

// CoordinationPayload is the closed set of payloads carried by coordination
// messages. The marker method keeps the set sealed so receivers can switch
// over every variant.
type CoordinationPayload interface {
	isCoordinationPayload()
}

// Ping is a health probe. A runtime answers it by broadcasting a fresh
// status update.
type Ping struct {
	Probe string `json:"probe,omitempty"`
}

// Restart instructs a runtime to drop its queued tasks and return to idle.
type Restart struct {
	Reason string `json:"reason,omitempty"`
}

// CapabilityRequest asks an agent whether it can serve a set of required
// capability names. The runtime answers with a CapabilityResponse.
type CapabilityRequest struct {
	TaskID   string   `json:"task_id,omitempty"`
	Required []string `json:"required"`
}

// CapabilityResponse reports the capabilities an agent offers against a
// prior CapabilityRequest.
type CapabilityResponse struct {
	TaskID  string       `json:"task_id,omitempty"`
	Offered []Capability `json:"offered,omitempty"`
	Accept  bool         `json:"accept"`
}

// Optimize carries a performance hint from the coordinator to an agent
// whose score fell below the optimization threshold.
type Optimize struct {
	Reason      string   `json:"reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (Ping) isCoordinationPayload()               {}
func (Restart) isCoordinationPayload()            {}
func (CapabilityRequest) isCoordinationPayload()  {}
func (CapabilityResponse) isCoordinationPayload() {}
func (Optimize) isCoordinationPayload()           {}
