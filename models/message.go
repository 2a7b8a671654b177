package models

// MessageTypeRunML is the only message type the background coordinator answers.
const MessageTypeRunML = "runML"

// Message is the internal request sent from a page scanner to the coordinator.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
