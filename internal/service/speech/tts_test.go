package speech

import (
	"reflect"
	"testing"

	"github.com/zhouzirui/happymac/backend/internal/model/speech"
)

func TestResolveTTSResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "en_female_amy_jupiter_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "legacy voice", voice: "en_male_adam", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		if got := resolveTTSResourceCandidates(tt.voice); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveTTSResourceCandidates(%q) = %v, want %v", tt.name, tt.voice, got, tt.want)
		}
	}
}

func TestResolveTTSSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{
			name:     "request and fallback",
			request:  "en_male_glen_emo_v2_mars_bigtts",
			fallback: "en_female_amy_jupiter_bigtts",
			want:     []string{"en_male_glen_emo_v2_mars_bigtts", "en_female_amy_jupiter_bigtts"},
		},
		{name: "request empty", request: "", fallback: "en_female_amy_jupiter_bigtts", want: []string{"en_female_amy_jupiter_bigtts"}},
		{name: "duplicates ignored", request: "EN_voice", fallback: "en_voice", want: []string{"EN_voice"}},
		{name: "alias", request: "happy-mac", fallback: "zh_default", want: []string{"en_female_amy_jupiter_bigtts", "zh_female_vv_uranus_bigtts"}},
		{name: "nothing configured", request: "", fallback: "", want: nil},
	}

	for _, tt := range tests {
		if got := resolveTTSSpeakerCandidates(tt.request, tt.fallback); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveTTSSpeakerCandidates(%q, %q) = %v, want %v", tt.name, tt.request, tt.fallback, got, tt.want)
		}
	}
}

func TestBuildTTSRequestCarriesProsody(t *testing.T) {
	client := NewVolcengineTTSClient(&speech.SpeechConfig{TTSVoice: "fallback", TTSSpeed: 1.0, TTSLanguage: "en-US"}, nil)

	req, uid := client.buildTTSRequest(&speech.TTSRequest{
		SessionID: "sess",
		Text:      "Hello",
		Speed:     1.25,
		Pitch:     0.8,
		Volume:    1.0,
		Format:    "wav",
	}, "en_female_amy_jupiter_bigtts")

	if uid != "sess" {
		t.Fatalf("expected session uid, got %s", uid)
	}
	params := req.ReqParams.AudioParams
	if params.Format != "mp3" {
		t.Fatalf("expected wav mapped to mp3, got %s", params.Format)
	}
	if params.SpeedRatio != 1.25 || params.PitchRatio != 0.8 {
		t.Fatalf("unexpected prosody %+v", params)
	}
	if params.VolumeRatio != 0 {
		t.Fatalf("neutral volume should be omitted, got %v", params.VolumeRatio)
	}
	if req.ReqParams.Language != "en-US" {
		t.Fatalf("expected config language fallback, got %q", req.ReqParams.Language)
	}
}

func TestParseCatalog(t *testing.T) {
	voices, err := ParseCatalog("a|Alpha|en-US, b||en-GB")
	if err != nil {
		t.Fatalf("ParseCatalog err: %v", err)
	}
	if len(voices) != 2 || voices[0].Name != "Alpha" || voices[1].Name != "b" || voices[1].Lang != "en-GB" {
		t.Fatalf("unexpected catalog %+v", voices)
	}

	if _, err := ParseCatalog("broken"); err == nil {
		t.Fatal("expected error for malformed entry")
	}
	if _, err := ParseCatalog("id|name|"); err == nil {
		t.Fatal("expected error for missing lang")
	}
	if voices, err := ParseCatalog("  "); err != nil || voices != nil {
		t.Fatalf("expected empty catalog, got %v %v", voices, err)
	}
}
