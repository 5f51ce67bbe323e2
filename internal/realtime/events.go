// Package realtime implements a websocket client for a speech-to-speech
// realtime conversation endpoint. Messages in both directions are JSON
// envelopes discriminated by a "type" field.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Server event types the session loop reacts to.
const (
	EventResponseCreated         = "response.created"
	EventResponseAudioDelta      = "response.audio.delta"
	EventResponseTranscriptDelta = "response.audio_transcript.delta"
	EventResponseTranscriptDone  = "response.audio_transcript.done"
	EventInputTranscriptDone     = "conversation.item.input_audio_transcription.completed"
	EventSpeechStarted           = "input_audio_buffer.speech_started"
	EventSpeechStopped           = "input_audio_buffer.speech_stopped"
	EventResponseCancelled       = "response.cancelled"
	EventResponseDone            = "response.done"
	EventContentPartDone         = "response.content_part.done"
	EventError                   = "error"
)

// errCodeCancelNotActive is returned when a cancel races a response that
// already finished on the server. Harmless, never surfaced.
const errCodeCancelNotActive = "response_cancel_not_active"

// Event is a decoded server event. Only the fields relevant to the event's
// Type are populated.
type Event struct {
	Type       string         `json:"type"`
	Delta      string         `json:"delta,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Response   *ResponseBody  `json:"response,omitempty"`
	Error      *ErrorDetail   `json:"error,omitempty"`
	Item       *EventItemInfo `json:"item,omitempty"`
}

// ResponseBody carries the completed response payload of a response.done
// event, including any function calls the model emitted.
type ResponseBody struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status,omitempty"`
	Output []OutputItem `json:"output,omitempty"`
}

// OutputItem is one element of a completed response's output array.
type OutputItem struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
}

// EventItemInfo identifies the conversation item an event refers to.
type EventItemInfo struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// ErrorDetail is the body of an error event.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// EndInterviewArgs are the arguments of the end_interview function call.
type EndInterviewArgs struct {
	Reason         string `json:"reason"`
	QuestionsAsked int    `json:"questions_asked"`
}

// FunctionCall scans a completed response for a function call with the
// given name and decodes its arguments into out.
func (r *ResponseBody) FunctionCall(name string, out any) (bool, error) {
	if r == nil {
		return false, nil
	}
	for _, item := range r.Output {
		if item.Type != "function_call" || item.Name != name {
			continue
		}
		if err := json.Unmarshal([]byte(item.Arguments), out); err != nil {
			return true, fmt.Errorf("decoding %s arguments: %w", name, err)
		}
		return true, nil
	}
	return false, nil
}

// DecodeEvent parses a raw server message into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding server event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("server event missing type")
	}
	return ev, nil
}
