package live

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// PCMMimeType is the only media type exchanged with the channel
const PCMMimeType = "audio/pcm"

// DefaultOutputRate is the synthesis rate assumed when an inline chunk carries no rate parameter
const DefaultOutputRate = 24000

// ErrUnsupportedMIME is returned for inline media that is not linear PCM
var ErrUnsupportedMIME = errors.New("unsupported media type")

// Blob is a mime-tagged binary payload. Data is base64 encoded on the wire.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// RealtimeInput is the outbound message sent once per capture block
type RealtimeInput struct {
	Media *Blob `json:"media"`
}

// Transcription is a partial or final transcript fragment
type Transcription struct {
	Text     string
	Finished bool
}

// Message is one inbound content event. Any combination of fields may be set.
type Message struct {
	InputTranscription  *Transcription // what the user said
	OutputTranscription *Transcription // what the agent is saying
	Audio               []Blob         // inline PCM, one entry per synthesis step
	TurnComplete        bool
	Interrupted         bool
}

// Setup describes the conversation to open
type Setup struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// Channel is the duplex connection to the remote voice agent.
// SendRealtimeInput is fire-and-forget: it does not wait for any acknowledgment.
type Channel interface {
	SendRealtimeInput(input RealtimeInput) error
	Receive() (*Message, error)
	Close() error
}

// Dialer opens channels
type Dialer interface {
	Dial(ctx context.Context, setup Setup) (Channel, error)
}

// ParseRate extracts the sample rate from a type such as "audio/pcm;rate=24000".
// A missing rate yields DefaultOutputRate.
func ParseRate(mimeType string) (int, error) {
	if strings.TrimSpace(mimeType) == "" {
		return DefaultOutputRate, nil
	}

	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0, fmt.Errorf("parse media type %q: %w", mimeType, err)
	}
	if mediaType != PCMMimeType {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMIME, mediaType)
	}

	raw, ok := params["rate"]
	if !ok {
		return DefaultOutputRate, nil
	}
	rate, err := strconv.Atoi(raw)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %q", raw)
	}
	return rate, nil
}
