package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"trailscout/internal/config"
	"trailscout/internal/core"
	"trailscout/internal/logging"
)

// GeminiClient implements core.LLMClient against the Gemini REST API.
type GeminiClient struct {
	apiKey           string
	baseURL          string
	model            string
	temperature      float64
	maxOutputTokens  int
	maxRetries       int
	retryBackoffBase time.Duration
	httpClient       *http.Client
	mu               sync.Mutex
	lastRequest      time.Time
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Temperature:     0.1,
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 1000,
		MaxRetries:      3,
	}
}

// NewGeminiClient creates a new Gemini client with default settings.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a new Gemini client with custom config.
func NewGeminiClientWithConfig(cfg GeminiConfig) *GeminiClient {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	maxOutputTokens := cfg.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = 1000
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &GeminiClient{
		apiKey:           cfg.APIKey,
		baseURL:          baseURL,
		model:            model,
		temperature:      cfg.Temperature,
		maxOutputTokens:  maxOutputTokens,
		maxRetries:       maxRetries,
		retryBackoffBase: time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewGeminiClientForRole builds a client from the application config, using
// the model configured for the given pipeline role.
func NewGeminiClientForRole(appCfg *config.Config, role string) *GeminiClient {
	return NewGeminiClientWithConfig(GeminiConfig{
		APIKey:          appCfg.LLM.APIKey,
		BaseURL:         appCfg.LLM.BaseURL,
		Model:           appCfg.ModelForRole(role),
		Temperature:     appCfg.LLM.Temperature,
		Timeout:         appCfg.GetLLMTimeout(),
		MaxOutputTokens: appCfg.LLM.MaxOutputTokens,
		MaxRetries:      appCfg.LLM.MaxRetries,
	})
}

// GetModel returns the model in use.
func (c *GeminiClient) GetModel() string {
	return c.model
}

// SetModel overrides the model at runtime.
func (c *GeminiClient) SetModel(model string) {
	if strings.TrimSpace(model) != "" {
		c.model = model
	}
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// Auto-apply timeout if context has no deadline (centralized timeout handling)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.APIDebug("[Gemini] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	if c.apiKey == "" {
		logging.Get(logging.CategoryAPI).Error("[Gemini] CompleteWithSystem: API key not configured")
		return "", fmt.Errorf("API key not configured")
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	reqBody := c.buildRequest(systemPrompt, userPrompt, nil)

	response, err := c.send(ctx, reqBody, false)
	if err != nil {
		return "", err
	}

	logging.API("[Gemini] CompleteWithSystem: completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}

// SchemaCapable reports whether this client supports response schema enforcement.
func (c *GeminiClient) SchemaCapable() bool {
	return true
}

const geminiSchemaDepthLimit = 6

// CompleteWithSchema sends a prompt and enforces a JSON schema in the response.
// Uses generationConfig.responseSchema with responseMimeType application/json.
func (c *GeminiClient) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error) {
	// Auto-apply timeout if context has no deadline (centralized timeout handling)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.APIDebug("[Gemini] CompleteWithSchema: model=%s system_len=%d user_len=%d schema_len=%d", c.model, len(systemPrompt), len(userPrompt), len(jsonSchema))

	if c.apiKey == "" {
		logging.Get(logging.CategoryAPI).Error("[Gemini] CompleteWithSchema: API key not configured")
		return "", fmt.Errorf("API key not configured")
	}

	schemaText := strings.TrimSpace(jsonSchema)
	if schemaText == "" {
		return "", fmt.Errorf("json schema is empty")
	}

	var schema map[string]interface{}
	if err := json.Unmarshal([]byte(schemaText), &schema); err != nil {
		return "", fmt.Errorf("invalid json schema: %w", err)
	}
	if depth := schemaMaxDepth(schema, 0); depth > geminiSchemaDepthLimit {
		logging.Get(logging.CategoryAPI).Warn("[Gemini] Schema depth %d exceeds limit %d; using shallow schema", depth, geminiSchemaDepthLimit)
		schema = shallowSchema(schema)
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	reqBody := c.buildRequest(systemPrompt, userPrompt, schema)

	response, err := c.send(ctx, reqBody, true)
	if err != nil {
		return "", err
	}

	logging.API("[Gemini] CompleteWithSchema: completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}

func (c *GeminiClient) buildRequest(systemPrompt, userPrompt string, schema map[string]interface{}) GeminiRequest {
	req := GeminiRequest{
		Contents: []GeminiContent{
			{
				Role:  "user",
				Parts: []GeminiPart{{Text: userPrompt}},
			},
		},
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if schema != nil {
		req.GenerationConfig.ResponseMimeType = "application/json"
		req.GenerationConfig.ResponseSchema = schema
	}
	return req
}

// send performs the request with rate limiting and bounded retries.
// Transport errors, 429s, and 5xx statuses retry with exponential
// backoff; other non-OK statuses fail immediately.
func (c *GeminiClient) send(ctx context.Context, reqBody GeminiRequest, schemaEnforced bool) (string, error) {
	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var lastErr error

	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * c.retryBackoffBase)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("server error (status %d)", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			bodyStr := string(body)
			if schemaEnforced && resp.StatusCode == http.StatusBadRequest {
				bodyLower := strings.ToLower(bodyStr)
				if strings.Contains(bodyLower, "responsejsonschema") ||
					strings.Contains(bodyLower, "responsemimetype") ||
					strings.Contains(bodyLower, "response_schema") ||
					strings.Contains(bodyLower, "response_mime_type") ||
					strings.Contains(bodyLower, "responseschema") ||
					(strings.Contains(bodyLower, "schema") && strings.Contains(bodyLower, "nesting depth")) {
					return "", core.ErrSchemaNotSupported
				}
			}
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, bodyStr)
		}

		var geminiResp GeminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}

		if geminiResp.Error != nil {
			return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
		}

		if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		var result strings.Builder
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}

		return strings.TrimSpace(result.String()), nil
	}

	logging.Get(logging.CategoryAPI).Error("[Gemini] max retries exceeded: %v", lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func schemaMaxDepth(value interface{}, depth int) int {
	maxDepth := depth
	switch typed := value.(type) {
	case map[string]interface{}:
		if depth+1 > maxDepth {
			maxDepth = depth + 1
		}
		for _, child := range typed {
			if childDepth := schemaMaxDepth(child, depth+1); childDepth > maxDepth {
				maxDepth = childDepth
			}
		}
	case []interface{}:
		if depth+1 > maxDepth {
			maxDepth = depth + 1
		}
		for _, child := range typed {
			if childDepth := schemaMaxDepth(child, depth+1); childDepth > maxDepth {
				maxDepth = childDepth
			}
		}
	}
	return maxDepth
}

func shallowSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{"type": "object"}
	}
	props := map[string]interface{}{}
	if rawProps, ok := schema["properties"].(map[string]interface{}); ok {
		for key, value := range rawProps {
			props[key] = shallowSchemaProperty(value)
		}
	}
	result := map[string]interface{}{
		"type": "object",
	}
	if len(props) > 0 {
		result["properties"] = props
	}
	if required, ok := schema["required"]; ok {
		result["required"] = required
	}
	return result
}

func shallowSchemaProperty(value interface{}) map[string]interface{} {
	if valueMap, ok := value.(map[string]interface{}); ok {
		if enumVal, ok := valueMap["enum"]; ok {
			return map[string]interface{}{
				"type": "string",
				"enum": enumVal,
			}
		}
		if typeVal, ok := valueMap["type"].(string); ok && typeVal != "" {
			return map[string]interface{}{
				"type": typeVal,
			}
		}
	}
	return map[string]interface{}{
		"type": "string",
	}
}
