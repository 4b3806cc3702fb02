package core

import (
	"context"
	"testing"
)

type mockBasicClient struct{}

func (m *mockBasicClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "response", nil
}

func (m *mockBasicClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "response", nil
}

type mockSchemaClient struct {
	mockBasicClient
}

func (m *mockSchemaClient) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error) {
	return `{"key": "value"}`, nil
}

type mockToggleClient struct {
	mockSchemaClient
	capable bool
}

func (m *mockToggleClient) SchemaCapable() bool { return m.capable }

func TestAsSchemaCapable(t *testing.T) {
	if _, ok := AsSchemaCapable(&mockBasicClient{}); ok {
		t.Error("Expected ok=false for basic client")
	}

	sc, ok := AsSchemaCapable(&mockSchemaClient{})
	if !ok || sc == nil {
		t.Error("Expected schema-capable view for capable client")
	}

	if _, ok := AsSchemaCapable(&mockToggleClient{capable: false}); ok {
		t.Error("Expected ok=false when SchemaCapable() reports false")
	}

	sc, ok = AsSchemaCapable(&mockToggleClient{capable: true})
	if !ok || sc == nil {
		t.Error("Expected ok=true when SchemaCapable() reports true")
	}
}
