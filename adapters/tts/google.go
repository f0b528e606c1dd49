package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

type Config struct {
	LanguageCode string
	VoiceName    string
}

// GoogleTTS reads replies aloud through Cloud Text-to-Speech as MP3.
type GoogleTTS struct {
	client *texttospeech.Client
	voice  *texttospeechpb.VoiceSelectionParams
}

func NewGoogleTTS(ctx context.Context, cfg Config) (*GoogleTTS, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Google tts client: %w", err)
	}
	return &GoogleTTS{client: client, voice: voiceParams(cfg)}, nil
}

func voiceParams(cfg Config) *texttospeechpb.VoiceSelectionParams {
	voice := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: cfg.LanguageCode,
		Name:         cfg.VoiceName,
		SsmlGender:   texttospeechpb.SsmlVoiceGender_MALE,
	}
	if voice.LanguageCode == "" {
		voice.LanguageCode = "en-GB"
	}
	return voice
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("synthesizing speech: empty text")
	}
	req := texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: g.voice,
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
	resp, err := g.client.SynthesizeSpeech(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}
	return resp.GetAudioContent(), nil
}

func (g *GoogleTTS) Close() error {
	return g.client.Close()
}
