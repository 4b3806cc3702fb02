package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trailscout/internal/articulation"
	"trailscout/internal/core"
	"trailscout/internal/logging"
)

const intentSystemPrompt = `You are an expert at understanding user intent for activity recommendations and constructing structured search queries.

YOUR TASK:
Parse the user request into a structured intent object.

BASIC FIELDS (always required):
- activity_type: type of activity (hiking, running, cycling, swimming, climbing, walking, or general)
- location: location for the activity
- search_query: enhanced search query with specific parameters when available
- search_radius_km: infer from context (city center=10, nearby=15, day trip=50 or more, default=25)
- indoor_outdoor: "indoor", "outdoor", or "both"

STRUCTURED PARAMETERS (extract if mentioned, leave null if not):
- difficulty_preference: "easy", "moderate", "hard", or "challenging" if mentioned
- duration_preference: "short" (<30min), "medium" (30-60min), "long" (1-3hr), "full day" if mentioned
- elevation_preference: "flat", "rolling", "hilly", "mountainous" if mentioned
- surface_preference: "pavement", "trails", "mixed" if mentioned
- starting_point: specific starting location if mentioned (e.g. "from Central Park")
- distance_preference: specific distance if mentioned (e.g. "5km", "10 miles")
- preferences: list of other preferences mentioned
- weather_condition: leave null; weather is resolved separately

QUERY QUALITY ASSESSMENT:
- is_generic: true if the query lacks specific details (just "running in Vienna"), false if specific
- needs_clarification: true if the query is very generic and would benefit from clarification

SEARCH QUERY CONSTRUCTION:
Build search queries that include available parameters:
- Basic: "running in Vienna" -> "running routes Vienna city center"
- Enhanced: "hard running route in Vienna, about 10km" -> "challenging running routes Vienna hard difficulty"
- With details: "easy hiking near Prague, flat terrain" -> "easy flat hiking trails near Prague beginner friendly"

CLARIFICATION TRIGGERS:
Set needs_clarification=true for very generic queries like:
- "something active in [city]"
- "outdoor activity"
- "exercise near me"
- just activity type + location with no other details

CRITICAL RULES:
1. Only extract parameters that are explicitly mentioned. Do not infer or assume details.
2. For generic queries, keep search_query simple but set needs_clarification=true.
3. Be conservative with needs_clarification. Only flag very vague requests.
4. If known preferences from earlier turns are supplied, treat the new request in their context, but still only report what THIS request states or changes.

Respond with ONLY a JSON object. No prose, no markdown fences.`

// IntentAgent turns a free-form user request into a structured intent.
type IntentAgent struct {
	llm  core.LLMClient
	proc *articulation.Processor
}

// NewIntentAgent creates an intent agent on top of the given LLM client.
func NewIntentAgent(llm core.LLMClient) *IntentAgent {
	return &IntentAgent{
		llm:  llm,
		proc: articulation.NewProcessor(),
	}
}

// Extract parses the utterance into a UserIntent. The response is validated
// against the intent schema; one corrective retry quotes the validation
// failure back to the model before the turn fails with ErrIntentInvalid.
func (a *IntentAgent) Extract(ctx context.Context, utterance string, prior *core.UserPreferences) (*core.UserIntent, error) {
	userPrompt := a.buildUserPrompt(utterance, prior)

	raw, err := a.complete(ctx, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("intent extraction: %w", err)
	}

	result, perr := a.proc.Process(raw, articulation.IntentSchema)
	if perr != nil {
		logging.Intent("intent response rejected, retrying once: %v", perr)
		retryPrompt := fmt.Sprintf(`%s

PREVIOUS ATTEMPT FAILED - VALIDATION ERRORS DETECTED:
%s

Please correct the JSON output and try again.`, userPrompt, articulation.RetryDetail(perr))

		raw, err = a.complete(ctx, retryPrompt)
		if err != nil {
			return nil, fmt.Errorf("intent extraction retry: %w", err)
		}
		result, perr = a.proc.Process(raw, articulation.IntentSchema)
		if perr != nil {
			return nil, fmt.Errorf("intent response invalid after retry (%v): %w", perr, core.ErrIntentInvalid)
		}
	}

	var intent core.UserIntent
	if err := result.Decode(&intent); err != nil {
		return nil, fmt.Errorf("intent decode (%v): %w", err, core.ErrIntentInvalid)
	}

	normalizeIntent(&intent)
	logging.Intent("extracted intent: activity=%s location=%s generic=%t clarify=%t",
		intent.ActivityType, intent.Location, intent.IsGeneric, intent.NeedsClarification)
	return &intent, nil
}

// complete prefers schema-enforced output and falls back to a plain
// completion when the provider rejects the response schema.
func (a *IntentAgent) complete(ctx context.Context, userPrompt string) (string, error) {
	if sc, ok := core.AsSchemaCapable(a.llm); ok {
		raw, err := sc.CompleteWithSchema(ctx, intentSystemPrompt, userPrompt, articulation.IntentSchema)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, core.ErrSchemaNotSupported) {
			return "", err
		}
		logging.Intent("schema enforcement unsupported, falling back to plain completion")
	}
	return a.llm.CompleteWithSystem(ctx, intentSystemPrompt, userPrompt)
}

func (a *IntentAgent) buildUserPrompt(utterance string, prior *core.UserPreferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %q\n", utterance)
	fmt.Fprintf(&b, "Today: %s\n", time.Now().Format("Monday, 2 January 2006"))
	if prior != nil {
		if state, err := json.Marshal(prior); err == nil {
			fmt.Fprintf(&b, "\nKnown preferences from earlier turns:\n%s\n", state)
		}
	}
	return b.String()
}

func normalizeIntent(intent *core.UserIntent) {
	intent.ActivityType = string(core.ParseActivityType(intent.ActivityType))
	intent.Location = strings.TrimSpace(intent.Location)
	intent.SearchQuery = strings.TrimSpace(intent.SearchQuery)
	if intent.IndoorOutdoor == "" {
		intent.IndoorOutdoor = "both"
	}
}
