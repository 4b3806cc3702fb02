package core

import "context"

// LLMClient defines the minimal interface the agents use to call an LLM.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SchemaCapableLLMClient extends LLMClient with schema-constrained
// completion. jsonSchema is a draft-07 document; the provider is asked
// to emit JSON conforming to it.
type SchemaCapableLLMClient interface {
	LLMClient
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error)
}

// schemaToggler lets a client report at runtime that its configured
// model cannot honor response schemas even though the method exists.
type schemaToggler interface {
	SchemaCapable() bool
}

// AsSchemaCapable returns the schema-capable view of client, or false
// when the client lacks the method or reports itself incapable.
func AsSchemaCapable(client LLMClient) (SchemaCapableLLMClient, bool) {
	sc, ok := client.(SchemaCapableLLMClient)
	if !ok {
		return nil, false
	}
	if t, ok := client.(schemaToggler); ok && !t.SchemaCapable() {
		return nil, false
	}
	return sc, true
}
