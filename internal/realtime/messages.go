package realtime

// Client message envelopes. Each carries its own "type" discriminator so
// the structs marshal directly onto the wire.

type sessionUpdateMessage struct {
	Type    string          `json:"type"`
	Session SessionSettings `json:"session"`
}

type audioAppendMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type responseCreateMessage struct {
	Type string `json:"type"`
}

type responseCancelMessage struct {
	Type string `json:"type"`
}

// SessionSettings configures the conversation on the server: voice, audio
// formats, input transcription, server-side voice activity detection and
// the tools exposed to the model.
type SessionSettings struct {
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection       `json:"turn_detection,omitempty"`
	Tools                   []Tool               `json:"tools,omitempty"`
	ToolChoice              string               `json:"tool_choice,omitempty"`
}

type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetection tunes server-side VAD. Low threshold and short silence
// window keep turn handoff snappy for a conversational interview.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required"`
}

type ToolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// EndInterviewTool is the function the model calls to close the interview
// once it has asked enough questions.
const EndInterviewTool = "end_interview"

// DefaultTurnDetection returns the VAD tuning used for interviews.
func DefaultTurnDetection() *TurnDetection {
	return &TurnDetection{
		Type:              "server_vad",
		Threshold:         0.3,
		PrefixPaddingMs:   200,
		SilenceDurationMs: 300,
	}
}

// EndInterviewToolSpec declares the end_interview function.
func EndInterviewToolSpec() Tool {
	return Tool{
		Type:        "function",
		Name:        EndInterviewTool,
		Description: "Call this when the interview is complete and all questions have been asked and answered.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"reason": {
					Type:        "string",
					Description: "Why the interview is ending.",
				},
				"questions_asked": {
					Type:        "number",
					Description: "How many questions were asked during the interview.",
				},
			},
			Required: []string{"reason", "questions_asked"},
		},
	}
}
