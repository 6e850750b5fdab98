package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GenAIDialer opens Gemini Live sessions
type GenAIDialer struct {
	client *genai.Client
}

// NewGenAIDialer creates a dialer for the Gemini API backend
func NewGenAIDialer(ctx context.Context, apiKey string) (*GenAIDialer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIDialer{client: client}, nil
}

// Dial connects a live session with audio responses and both transcriptions enabled.
// It blocks until the session is open or ctx is cancelled.
func (d *GenAIDialer) Dial(ctx context.Context, setup Setup) (Channel, error) {
	session, err := d.client.Live.Connect(ctx, setup.Model, connectConfig(setup))
	if err != nil {
		return nil, fmt.Errorf("failed to connect live session: %w", err)
	}
	return &genaiChannel{session: session}, nil
}

func connectConfig(setup Setup) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if setup.Voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: setup.Voice},
			},
		}
	}
	if setup.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: setup.SystemInstruction}},
		}
	}
	return cfg
}

type genaiChannel struct {
	session *genai.Session

	closeOnce sync.Once
	closeErr  error
}

func (c *genaiChannel) SendRealtimeInput(input RealtimeInput) error {
	if input.Media == nil {
		return nil
	}
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{
			MIMEType: input.Media.MIMEType,
			Data:     input.Media.Data,
		},
	})
}

func (c *genaiChannel) Receive() (*Message, error) {
	msg, err := c.session.Receive()
	if err != nil {
		return nil, err
	}
	return fromServerMessage(msg), nil
}

func (c *genaiChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.session.Close()
	})
	return c.closeErr
}

// fromServerMessage keeps only the content events the client pipeline consumes
func fromServerMessage(msg *genai.LiveServerMessage) *Message {
	out := &Message{}
	if msg == nil || msg.ServerContent == nil {
		return out
	}
	sc := msg.ServerContent

	if sc.InputTranscription != nil {
		out.InputTranscription = &Transcription{
			Text:     sc.InputTranscription.Text,
			Finished: sc.InputTranscription.Finished,
		}
	}
	if sc.OutputTranscription != nil {
		out.OutputTranscription = &Transcription{
			Text:     sc.OutputTranscription.Text,
			Finished: sc.OutputTranscription.Finished,
		}
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			out.Audio = append(out.Audio, Blob{
				MIMEType: part.InlineData.MIMEType,
				Data:     part.InlineData.Data,
			})
		}
	}
	out.TurnComplete = sc.TurnComplete
	out.Interrupted = sc.Interrupted
	return out
}
