// Package conversation drives the feedback loop: classifying what the
// user thought of a round of recommendations, evolving preference state
// across turns, and asking for missing details when a request is too
// generic to search well.
package conversation

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

// RephraseMessage is the reply for feedback that could not be
// classified. State is left untouched so the user can simply try again.
const RephraseMessage = "I had trouble understanding your feedback. Could you please try rephrasing what you'd like to change?"

// Keyword groups for the cheap pre-LLM passes. Satisfaction and proceed
// are decisive on their own; the other two only bias the classifier.
var (
	satisfactionKeywords = []string{
		"perfect", "great", "excellent", "thanks", "thank you",
		"that's all", "looks good", "sounds good",
	}
	proceedKeywords = []string{"proceed", "go ahead", "continue", "yes"}

	newSearchHints = []string{
		"rather", "instead", "prefer", "different", "something else",
		"how about", "what about", "completely different",
	}
	refinementHints = []string{
		"longer", "shorter", "easier", "harder", "closer", "further",
		"outskirts", "more time", "less time", "duration", "distance",
	}

	quitWords = []string{"quit", "exit", "bye", "goodbye", "stop"}
)

// SoundsSatisfied reports whether free-form input contains a
// satisfaction phrase. The chat surface uses it to close the
// conversation without an LLM round trip; classification applies the
// same check as its fast path.
func SoundsSatisfied(input string) bool {
	return containsAny(strings.ToLower(input), satisfactionKeywords)
}

// IsQuitWord reports whether the input is a bare quit command. Exact
// match only, so "stop at the lake" is not a quit.
func IsQuitWord(input string) bool {
	w := strings.ToLower(strings.TrimSpace(input))
	for _, q := range quitWords {
		if w == q {
			return true
		}
	}
	return false
}

const feedbackSystemPrompt = "You are an expert at understanding user intent from feedback. Classify the feedback accurately based on the examples provided."

const feedbackInstructions = `The user provided feedback on activity recommendations. Analyze their intent and decide what action to take.

EXAMPLES OF DIFFERENT FEEDBACK TYPES:

SATISFIED (user is happy, conversation can end):
- "Perfect, thanks!"
- "These look great"
- "That's exactly what I wanted"
- "Good suggestions"
- "I like these"

NEW_SEARCH (user wants completely different activities, need new search):
- "I'd rather do something indoors"
- "Actually, I prefer cycling instead of hiking"
- "What about water sports instead?"
- "How about group activities?"

REFINEMENT (user likes the current activity type but wants adjustments):
- "These are too difficult"
- "Make it shorter duration"
- "Something with less equipment needed"
- "A bit closer to my location"
- "Longer routes, could also be more in the outskirts"

PROCEED (user answers a clarification prompt by telling us to search anyway):
- "Just go ahead"
- "Proceed with what you have"

UNCLEAR (cannot determine intent, need clarification):
- "Hmm"
- "Maybe"
- "I don't know"

Classify the feedback as one of: "satisfied", "new_search", "refinement", "proceed", "unclear".

For "new_search" and "refinement", fill extracted_updates with ONLY the preference fields the user actually changed. Leave every unmentioned field null.

Respond with ONLY a JSON object. No prose, no markdown fences.`

// Agent classifies feedback turns.
type Agent struct {
	llm  core.LLMClient
	proc *articulation.Processor
}

// NewAgent creates a feedback classifier on top of the given LLM client.
func NewAgent(llm core.LLMClient) *Agent {
	return &Agent{
		llm:  llm,
		proc: articulation.NewProcessor(),
	}
}

// ClassifyFeedback decides what a feedback turn asks for. Satisfaction
// and proceed are resolved by keyword alone; everything else goes to the
// LLM with the feedback schema and one corrective retry. When even the
// retry fails the turn classifies as unclear rather than erroring, so a
// garbled reply never loses accumulated preference state.
func (a *Agent) ClassifyFeedback(ctx context.Context, feedback string, state *core.ConversationState) (*core.TurnFeedback, error) {
	turn := a.newTurn(feedback, state)
	lower := strings.ToLower(strings.TrimSpace(feedback))

	if containsAny(lower, satisfactionKeywords) {
		turn.FeedbackStatus = core.FeedbackSatisfied
		logging.Converse("feedback %q classified as satisfied (keyword)", feedback)
		return turn, nil
	}
	if containsAny(lower, proceedKeywords) {
		turn.FeedbackStatus = core.FeedbackProceed
		logging.Converse("feedback %q classified as proceed (keyword)", feedback)
		return turn, nil
	}

	userPrompt := a.buildUserPrompt(feedback, lower, state)

	raw, err := a.complete(ctx, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("feedback classification: %w", err)
	}

	result, perr := a.proc.Process(raw, articulation.FeedbackSchema)
	if perr != nil {
		logging.Converse("feedback response rejected, retrying once: %v", perr)
		retryPrompt := fmt.Sprintf(`%s

PREVIOUS ATTEMPT FAILED - VALIDATION ERRORS DETECTED:
%s

Please correct the JSON output and try again.`, userPrompt, articulation.RetryDetail(perr))

		raw, err = a.complete(ctx, retryPrompt)
		if err == nil {
			result, perr = a.proc.Process(raw, articulation.FeedbackSchema)
		}
		if err != nil || perr != nil {
			logging.Converse("feedback unclassifiable after retry, treating as unclear (err=%v perr=%v)", err, perr)
			turn.FeedbackStatus = core.FeedbackUnclear
			return turn, nil
		}
	}

	var decoded struct {
		FeedbackStatus   string                `json:"feedback_status"`
		ExtractedUpdates *core.PreferenceDelta `json:"extracted_updates"`
	}
	if derr := result.Decode(&decoded); derr != nil {
		logging.Converse("feedback decode failed, treating as unclear: %v", derr)
		turn.FeedbackStatus = core.FeedbackUnclear
		return turn, nil
	}

	turn.FeedbackStatus = decoded.FeedbackStatus
	if decoded.ExtractedUpdates != nil {
		turn.ExtractedUpdates = *decoded.ExtractedUpdates
	}
	logging.Converse("feedback %q classified as %s (delta empty=%t)",
		feedback, turn.FeedbackStatus, turn.ExtractedUpdates.IsEmpty())
	return turn, nil
}

func (a *Agent) newTurn(feedback string, state *core.ConversationState) *core.TurnFeedback {
	turn := &core.TurnFeedback{
		UserFeedback: feedback,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if state != nil {
		turn.ConversationID = state.SessionID
		turn.TurnNumber = state.TurnCount
	}
	return turn
}

func (a *Agent) buildUserPrompt(feedback, lower string, state *core.ConversationState) string {
	var b strings.Builder
	b.WriteString(feedbackInstructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "USER FEEDBACK: %q\n", feedback)
	if state != nil {
		fmt.Fprintf(&b, "ORIGINAL REQUEST: %q\n", state.InitialRequest)
		if prefs, err := json.Marshal(state.Preferences); err == nil {
			fmt.Fprintf(&b, "CURRENT PREFERENCES: %s\n", prefs)
		}
	}
	if containsAny(lower, newSearchHints) {
		b.WriteString("\nKEYWORD HINT: the feedback uses new-search vocabulary (rather/instead/different). Weigh that toward new_search.\n")
	}
	if containsAny(lower, refinementHints) {
		b.WriteString("\nKEYWORD HINT: the feedback uses refinement vocabulary (longer/shorter/easier/closer). Weigh that toward refinement.\n")
	}
	return b.String()
}

func (a *Agent) complete(ctx context.Context, userPrompt string) (string, error) {
	if sc, ok := core.AsSchemaCapable(a.llm); ok {
		raw, err := sc.CompleteWithSchema(ctx, feedbackSystemPrompt, userPrompt, articulation.FeedbackSchema)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, core.ErrSchemaNotSupported) {
			return "", err
		}
		logging.Converse("schema enforcement unsupported, falling back to plain completion")
	}
	return a.llm.CompleteWithSystem(ctx, feedbackSystemPrompt, userPrompt)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
