// Package articulation turns raw LLM output into validated structured
// data. Every structured leg of the pipeline goes through here: parse
// the response (models wrap JSON in prose and markdown fences more
// often than not), validate it against the leg's draft-07 schema, and
// only then decode. A validation failure carries the per-field messages
// so the caller can quote them back in a corrective retry prompt.
package articulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Processor handles the parse-validate-decode pipeline for one LLM
// response.
type Processor struct {
	// AllowMarkdownWrapped enables stripping ```json fences before
	// parsing. On by default.
	AllowMarkdownWrapped bool

	stats ProcessorStats
}

// ProcessorStats tracks parsing outcomes for monitoring.
type ProcessorStats struct {
	TotalProcessed     int
	SuccessfulParses   int
	ExtractedParses    int
	ValidationFailures int
}

// Result is the structured outcome of processing one response.
type Result struct {
	// Payload is the validated JSON document.
	Payload []byte

	// Parsing metadata.
	ParseMethod string // "json", "json_markdown", "json_extracted"
	Confidence  float64
	Warnings    []string

	// Original raw response (for debugging).
	RawResponse string
}

// Decode unmarshals the validated payload into v.
func (r *Result) Decode(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

// ValidationError reports a schema validation failure with the
// individual field messages.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Fields, "; "))
}

// NewProcessor creates a Processor with default settings.
func NewProcessor() *Processor {
	return &Processor{
		AllowMarkdownWrapped: true,
	}
}

// Process parses raw LLM output and validates it against schema.
// The parse chain runs strictest-first; each looser strategy lowers the
// recorded confidence.
func (p *Processor) Process(raw, schema string) (*Result, error) {
	p.stats.TotalProcessed++

	result := &Result{
		RawResponse: raw,
		ParseMethod: "unknown",
		Warnings:    []string{},
	}

	// 1. Try direct JSON parsing.
	payload, err := p.parseJSON(raw)
	if err == nil {
		if verr := validate(payload, schema); verr != nil {
			p.stats.ValidationFailures++
			return nil, verr
		}
		result.Payload = payload
		result.ParseMethod = "json"
		result.Confidence = 1.0
		p.stats.SuccessfulParses++
		return result, nil
	}

	// 2. Try markdown-wrapped JSON.
	if p.AllowMarkdownWrapped {
		payload, err = p.parseMarkdownWrappedJSON(raw)
		if err == nil {
			if verr := validate(payload, schema); verr != nil {
				p.stats.ValidationFailures++
				return nil, verr
			}
			result.Payload = payload
			result.ParseMethod = "json_markdown"
			result.Confidence = 0.95
			p.stats.SuccessfulParses++
			return result, nil
		}
	}

	// 3. Try to extract JSON embedded in mixed content.
	payload, err = p.extractEmbeddedJSON(raw)
	if err == nil {
		if verr := validate(payload, schema); verr != nil {
			p.stats.ValidationFailures++
			return nil, verr
		}
		result.Payload = payload
		result.ParseMethod = "json_extracted"
		result.Confidence = 0.85
		result.Warnings = append(result.Warnings, "JSON extracted from mixed content")
		p.stats.SuccessfulParses++
		p.stats.ExtractedParses++
		return result, nil
	}

	p.stats.ValidationFailures++
	return nil, fmt.Errorf("no parseable JSON in response: %w", err)
}

// parseJSON attempts direct JSON parsing.
func (p *Processor) parseJSON(s string) ([]byte, error) {
	s = strings.TrimSpace(s)

	var probe interface{}
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, err
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("top-level JSON value is not an object")
	}
	return []byte(s), nil
}

// parseMarkdownWrappedJSON handles ```json ... ``` wrapping.
func (p *Processor) parseMarkdownWrappedJSON(s string) ([]byte, error) {
	s = strings.TrimSpace(s)

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	return p.parseJSON(s)
}

var embeddedJSONPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// extractEmbeddedJSON finds a JSON object within mixed content. The
// greedy match spans the first '{' to the last '}', which handles the
// common "here is your JSON: {...} hope that helps" shape.
func (p *Processor) extractEmbeddedJSON(s string) ([]byte, error) {
	match := embeddedJSONPattern.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("no embedded JSON object found")
	}

	payload, err := p.parseJSON(match)
	if err == nil {
		return payload, nil
	}

	// Greedy span can swallow trailing prose braces. Walk the match
	// down to the largest balanced prefix before giving up.
	depth := 0
	inString := false
	escaped := false
	for i, r := range match {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return p.parseJSON(match[:i+1])
				}
			}
		}
	}
	return nil, err
}

// validate checks payload against a draft-07 schema, collecting every
// field message on failure.
func validate(payload []byte, schema string) error {
	if schema == "" {
		return nil
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		fields := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			fields[i] = desc.String()
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

// RetryDetail renders a processing failure in a form the model can act
// on in a corrective retry prompt. Validation failures list the
// offending fields; parse failures get a generic nudge.
func RetryDetail(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return strings.Join(verr.Fields, "\n")
	}
	return "the reply was not a parseable JSON object"
}

// GetStats returns current processing statistics.
func (p *Processor) GetStats() ProcessorStats {
	return p.stats
}

// ResetStats resets the processing statistics.
func (p *Processor) ResetStats() {
	p.stats = ProcessorStats{}
}
