package core

import "errors"

// Sentinel errors shared across the pipeline. Turn-scoped failures wrap
// these so callers can branch with errors.Is without string matching.
var (
	// ErrSchemaNotSupported is returned when the configured model cannot
	// honor a response schema and no fallback applies.
	ErrSchemaNotSupported = errors.New("schema validation not supported")

	// ErrIntentInvalid means intent extraction failed schema validation
	// twice (initial attempt plus the corrective retry). Fatal for the
	// turn, never for the session.
	ErrIntentInvalid = errors.New("intent failed schema validation after retry")

	// ErrNoConfidentExtraction means no fetched page yielded an activity
	// meeting the confidence gates. The user sees "insufficient data",
	// never an invented metric.
	ErrNoConfidentExtraction = errors.New("no confident extraction from any page")

	// ErrRequestTooShort rejects inputs below the minimum request length.
	ErrRequestTooShort = errors.New("request too short")

	// ErrTurnBudget means the conversation hit its turn limit.
	ErrTurnBudget = errors.New("conversation turn budget exhausted")
)
