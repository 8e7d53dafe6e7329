package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewFactory_RegistersEcho(t *testing.T) {
	f := NewFactory()
	names := f.Names()
	if len(names) != 1 || names[0] != EchoProviderName {
		t.Fatalf("expected only echo registered, got %v", names)
	}
}

func TestFactoryCreate_EmptyAndNoneUseEcho(t *testing.T) {
	f := NewFactory()
	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", name, err)
		}
		if p.Name() != EchoProviderName {
			t.Errorf("%q: expected echo provider, got %s", name, p.Name())
		}
	}
}

func TestFactoryCreate_UnknownProvider(t *testing.T) {
	f := NewFactory()
	f.Register("provider1", func(cfg ProviderConfig) (Provider, error) { return nil, nil })

	_, err := f.Create(ProviderConfig{Provider: "unknown"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "provider1") {
		t.Errorf("error should list registered providers, got %v", err)
	}
}

func TestFactoryCreate_RegisteredProvider(t *testing.T) {
	f := NewFactory()
	var got ProviderConfig
	f.Register("test", func(cfg ProviderConfig) (Provider, error) {
		got = cfg
		return &mockTestProvider{name: "test"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "test", Model: "m", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "test" {
		t.Fatalf("expected test provider, got %s", p.Name())
	}
	if got.Model != "m" || got.APIKey != "k" {
		t.Errorf("constructor did not receive config: %+v", got)
	}
}

func TestFactoryCreate_ConstructorError(t *testing.T) {
	f := NewFactory()
	expectedErr := errors.New("constructor failed")
	f.Register("failing", func(cfg ProviderConfig) (Provider, error) {
		return nil, expectedErr
	})

	p, err := f.Create(ProviderConfig{Provider: "failing"})
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected constructor error, got: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil provider on error")
	}
}

func TestKnownProviders(t *testing.T) {
	for _, name := range []string{"openai", "groq", "ollama", "openrouter"} {
		if url, ok := KnownProviders[name]; !ok || !strings.HasPrefix(url, "http") {
			t.Errorf("expected preset for %q, got %q", name, url)
		}
	}
}

func TestEchoProvider_Complete(t *testing.T) {
	p := NewEchoProvider()
	resp, err := p.Complete(context.Background(), &Prompt{
		Messages: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "reply"},
			{Role: RoleUser, Content: "second"},
		},
	}, &RequestOptions{Model: "openai/gpt-3.5-turbo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "second" {
		t.Errorf("expected last user message, got %q", resp.Content)
	}
	if resp.Model != "openai/gpt-3.5-turbo" {
		t.Errorf("expected requested model, got %q", resp.Model)
	}
}

func TestEchoProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEchoProvider().Complete(ctx, &Prompt{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPrompt_LastUserMessage_Nil(t *testing.T) {
	var p *Prompt
	if p.LastUserMessage() != "" {
		t.Error("nil prompt should have no user message")
	}
}

// mockTestProvider is a simple mock for testing
type mockTestProvider struct {
	name string
}

func (m *mockTestProvider) Name() string {
	return m.name
}

func (m *mockTestProvider) Complete(_ context.Context, _ *Prompt, _ *RequestOptions) (*Response, error) {
	return &Response{Content: "test"}, nil
}
