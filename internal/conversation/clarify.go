package conversation

import (
	"fmt"
	"strings"

	"trailscout/internal/core"
)

const clarifyQuestionCount = 3

// ClarificationMessage renders the follow-up for a request too generic
// to search well: three questions from the activity's bank plus an
// escape hatch so "proceed" runs the general search anyway.
func ClarificationMessage(intent *core.UserIntent) string {
	activity := strings.TrimSpace(intent.ActivityType)
	if activity == "" || activity == string(core.ActivityGeneral) {
		activity = "activities"
	}
	location := strings.TrimSpace(intent.Location)
	if location == "" {
		location = "your area"
	}

	questions := questionBank(core.ParseActivityType(intent.ActivityType), activity)
	if len(questions) > clarifyQuestionCount {
		questions = questions[:clarifyQuestionCount]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found your request for %s in %s! To give you the best recommendations, could you help me with a few details?\n\n", activity, location)
	for _, q := range questions {
		fmt.Fprintf(&b, "• %s\n", q)
	}
	fmt.Fprintf(&b, "\nOr if you'd like, I can proceed with general %s options in %s and you can refine from there. Just say \"proceed\" or \"go ahead\"!", activity, location)
	return b.String()
}

func questionBank(activity core.ActivityType, label string) []string {
	switch activity {
	case core.ActivityRunning:
		return []string{
			"What distance are you thinking? (e.g., 5km, 10km, or just time-based like 30 minutes)",
			"Do you prefer challenging routes with hills or flatter terrain?",
			"Any preference for trails vs. paved paths?",
			"Do you have a specific starting point in mind?",
		}
	case core.ActivityHiking, core.ActivityWalking:
		return []string{
			"What difficulty level? (easy, moderate, or challenging)",
			"How much time do you want to spend? (30 minutes, 1-2 hours, half day)",
			"Do you prefer flat walks or some elevation gain?",
			"Any specific area or starting point you'd like?",
		}
	case core.ActivityCycling:
		return []string{
			"What distance are you thinking? (short ride, 10-20km, longer tour)",
			"Do you prefer bike paths/lanes or are you comfortable with mixed traffic?",
			"Easy flat route or okay with some hills?",
			"Recreation cycling or more sporty/fitness focused?",
		}
	default:
		return []string{
			fmt.Sprintf("What level of %s are you looking for? (beginner, intermediate, advanced)", label),
			"How much time do you want to spend?",
			"Any specific preferences for location or type?",
			"Indoor, outdoor, or either is fine?",
		}
	}
}
