package voiceai

// Wire messages exchanged with the voice AI service. One config message is
// sent right after connect and acknowledged before any audio flows. Audio is
// framed as a raw binary chunk followed by an end-of-unit marker.

const (
	messageTypeConfig        = "config"
	messageTypeTranscription = "transcription"
	messageTypeAIResponse    = "ai_response"
	messageTypeError         = "error"
)

// endOfUnitMarker terminates every audio chunk on the wire.
var endOfUnitMarker = []byte("EOF")

type configMessage struct {
	Type       string `json:"type"`
	Language   string `json:"language"`
	UseAI      bool   `json:"use_ai"`
	SampleRate int    `json:"sample_rate"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}
