package ai

import (
	"context"
	"testing"
)

func TestDefaultRegistryResolvesBuiltins(t *testing.T) {
	reg := DefaultRegistry("http://gemini.local", "key", "http://ollama.local")

	p, err := reg.Get(context.Background(), "Gemini", "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("gemini: %v", err)
	}
	g, ok := p.(*GeminiProvider)
	if !ok {
		t.Fatalf("expected *GeminiProvider, got %T", p)
	}
	if g.BaseURL != "http://gemini.local" || g.Model != "gemini-2.0-flash" {
		t.Fatalf("gemini not configured: %+v", g)
	}

	p, err = reg.Get(context.Background(), "ollama", "llama3:latest")
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, ok := p.(*OllamaProvider); !ok {
		t.Fatalf("expected *OllamaProvider, got %T", p)
	}

	if _, err := reg.Get(context.Background(), "nope", "m"); err == nil {
		t.Fatalf("unknown provider must fail")
	}
}
