package tts

import (
	"context"
	"testing"
)

func TestVoiceParamsDefaults(t *testing.T) {
	v := voiceParams(Config{})
	if v.LanguageCode != "en-GB" {
		t.Errorf("expected en-GB default, got %s", v.LanguageCode)
	}
	v = voiceParams(Config{LanguageCode: "id-ID", VoiceName: "id-ID-Standard-B"})
	if v.LanguageCode != "id-ID" || v.Name != "id-ID-Standard-B" {
		t.Errorf("expected configured voice, got %s/%s", v.LanguageCode, v.Name)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	g := &GoogleTTS{voice: voiceParams(Config{})}
	if _, err := g.Synthesize(context.Background(), ""); err == nil {
		t.Error("expected error for empty text")
	}
}
