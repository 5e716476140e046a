package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("AI_HISTORY_LIMIT", "")
	t.Setenv("VOICE_RATE", "")
	t.Setenv("VOICE_PITCH", "")
	t.Setenv("VOICE_STRIP_EMOJI", "")
	t.Setenv("HAPPYMAC_SERVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderArk {
		t.Fatalf("expected ark provider, got %s", cfg.AI.Provider)
	}
	if cfg.AI.HistoryLimit != 10 {
		t.Fatalf("expected history limit 10, got %d", cfg.AI.HistoryLimit)
	}
	if cfg.Voice.Rate != 1.0 || cfg.Voice.Pitch != 1.0 {
		t.Fatalf("unexpected voice defaults: %+v", cfg.Voice)
	}
	if !cfg.Voice.StripEmoji {
		t.Fatal("expected emoji stripping enabled by default")
	}
	if cfg.Client.ServerURL != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected server url %s", cfg.Client.ServerURL)
	}
}

func TestLoadServerConfigAcceptsHostPort(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected host:port preserved, got %s", cfg.Addr)
	}
}

func TestLoadServerConfigRejectsSpaces(t *testing.T) {
	t.Setenv("PORT", "80 80")

	if _, err := loadServerConfig(); err == nil {
		t.Fatal("expected error for PORT containing spaces")
	}
}

func TestLoadAIConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")

	if _, err := loadAIConfig(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestAIConfigEnabledPerProvider(t *testing.T) {
	cases := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{name: "ark api key", cfg: AIConfig{Provider: ProviderArk, Model: "ep-1", APIKey: "k"}, want: true},
		{name: "ark missing model", cfg: AIConfig{Provider: ProviderArk, APIKey: "k"}, want: false},
		{name: "ark ak/sk", cfg: AIConfig{Provider: ProviderArk, Model: "ep-1", AccessKey: "a", SecretKey: "s"}, want: true},
		{name: "openai", cfg: AIConfig{Provider: ProviderOpenAI, OpenAIAPIKey: "k", OpenAIModel: "gpt"}, want: true},
		{name: "openai missing key", cfg: AIConfig{Provider: ProviderOpenAI, OpenAIModel: "gpt"}, want: false},
		{name: "ollama", cfg: AIConfig{Provider: ProviderOllama, OllamaHost: "http://x", OllamaModel: "llama3"}, want: true},
		{name: "unknown", cfg: AIConfig{Provider: "other"}, want: false},
	}

	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Errorf("%s: Enabled() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLoadVoiceConfigRejectsNonPositiveRate(t *testing.T) {
	t.Setenv("VOICE_RATE", "0")

	if _, err := loadVoiceConfig(); err == nil {
		t.Fatal("expected error for zero rate")
	}
}

func TestSpeechConfigFallsBackToArkCredentials(t *testing.T) {
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "")
	t.Setenv("SPEECH_API_KEY", "")
	t.Setenv("SPEECH_ACCESS_KEY", "")
	t.Setenv("ARK_API_KEY", "ark-token")

	cfg, err := loadSpeechConfig()
	if err != nil {
		t.Fatalf("loadSpeechConfig err: %v", err)
	}
	if cfg.AccessToken != "ark-token" {
		t.Fatalf("expected ark token fallback, got %q", cfg.AccessToken)
	}
	if !cfg.Enabled {
		t.Fatal("expected speech enabled with app id and token")
	}
}

func TestSpeechConfigModel(t *testing.T) {
	cfg := SpeechConfig{AppID: "app", AccessToken: "tok", TTSVoice: "v", Voices: "a|A|en-US", Timeout: 7}

	m := cfg.Model()
	if m.AppID != "app" || m.AccessToken != "tok" || m.TTSVoice != "v" || m.Voices != "a|A|en-US" || m.Timeout != 7 {
		t.Fatalf("unexpected model config %+v", m)
	}
}
