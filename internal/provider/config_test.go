package provider

import (
	"strings"
	"testing"
)

// checkValidate asserts that Validate fails mentioning wantErr, or succeeds
// when wantErr is empty.
func checkValidate(t *testing.T, cfg Config, wantErr string) {
	t.Helper()
	err := cfg.Validate()
	if wantErr == "" {
		if err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("Validate() expected error containing %q, got nil", wantErr)
	}
	if !strings.Contains(err.Error(), wantErr) {
		t.Errorf("Validate() error = %q, want substring %q", err.Error(), wantErr)
	}
}

func TestConfigValidate_Ollama(t *testing.T) {
	t.Parallel()

	checkValidate(t, Config{
		Backend: BackendOllama,
		Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3.1"},
	}, "")
	checkValidate(t, Config{
		Backend: BackendOllama,
		Ollama:  ProviderOllama{Host: "http://localhost:11434"},
	}, "OLLAMA_MODEL")
}

func TestConfigValidate_OpenAI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     ProviderOpenAI
		wantErr string
	}{
		{"valid", ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"}, ""},
		{"missing api key", ProviderOpenAI{Model: "gpt-4o-mini"}, "OPENAI_API_KEY"},
		{"missing model", ProviderOpenAI{APIKey: "sk-test"}, "OPENAI_MODEL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			checkValidate(t, Config{Backend: BackendOpenAI, OpenAI: tc.cfg}, tc.wantErr)
		})
	}
}

func TestConfigValidate_Azure(t *testing.T) {
	t.Parallel()

	valid := ProviderAzureOpenAI{
		APIKey:     "key",
		Endpoint:   "https://my.openai.azure.com",
		Deployment: "gpt-4o",
		APIVersion: "2024-02-01",
	}
	checkValidate(t, Config{Backend: BackendAzure, AzureOpenAI: valid}, "")

	cases := []struct {
		name    string
		mutate  func(*ProviderAzureOpenAI)
		wantErr string
	}{
		{"missing api key", func(c *ProviderAzureOpenAI) { c.APIKey = "" }, "AZURE_OPENAI_API_KEY"},
		{"missing endpoint", func(c *ProviderAzureOpenAI) { c.Endpoint = "" }, "AZURE_OPENAI_ENDPOINT"},
		{"missing deployment", func(c *ProviderAzureOpenAI) { c.Deployment = "" }, "AZURE_OPENAI_DEPLOYMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)
			checkValidate(t, Config{Backend: BackendAzure, AzureOpenAI: cfg}, tc.wantErr)
		})
	}
}

func TestConfigValidate_Bedrock(t *testing.T) {
	t.Parallel()

	checkValidate(t, Config{
		Backend: BackendBedrock,
		Bedrock: ProviderBedrock{AWSRegion: "us-east-1", ModelID: "anthropic.claude-3"},
	}, "")
	checkValidate(t, Config{
		Backend: BackendBedrock,
		Bedrock: ProviderBedrock{AWSRegion: "us-east-1"},
	}, "BEDROCK_MODEL_ID")
	checkValidate(t, Config{
		Backend: BackendBedrock,
		Bedrock: ProviderBedrock{ModelID: "anthropic.claude-3"},
	}, "AWS_REGION")
}

func TestConfigValidate_Gemini(t *testing.T) {
	t.Parallel()

	checkValidate(t, Config{
		Backend: BackendGemini,
		Gemini:  ProviderGemini{APIKey: "AIza-test", Model: "gemini-2.0-flash"},
	}, "")
	checkValidate(t, Config{
		Backend: BackendGemini,
		Gemini:  ProviderGemini{Model: "gemini-2.0-flash"},
	}, "GOOGLE_API_KEY")
	checkValidate(t, Config{
		Backend: BackendGemini,
		Gemini:  ProviderGemini{APIKey: "AIza-test"},
	}, "GEMINI_MODEL")
}

func TestConfigValidate_UnknownBackend(t *testing.T) {
	t.Parallel()
	checkValidate(t, Config{Backend: "watson"}, "unknown backend")
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	reasoning := []string{
		"o1", "o1-preview", "o1-mini",
		"o3", "o3-mini", "o3-pro",
		"o4-mini",
		"O1-PREVIEW", "O3-Mini", // matching is case-insensitive
		"codex", "codex-mini",
	}
	standard := []string{
		"gpt-4o", "gpt-4o-mini", "gpt-4", "gpt-4.1", "gpt-35-turbo",
		"gpt-5.2-codex", // "codex" not at the start, prefix rule does not match
		"my-custom-deployment",
		"",
	}

	for _, dep := range reasoning {
		if !isAzureReasoningModel(dep) {
			t.Errorf("isAzureReasoningModel(%q) = false, want true", dep)
		}
	}
	for _, dep := range standard {
		if isAzureReasoningModel(dep) {
			t.Errorf("isAzureReasoningModel(%q) = true, want false", dep)
		}
	}
}
