package articulation

// =============================================================================
// STRUCTURED OUTPUT SCHEMAS
// =============================================================================
// Draft-07 JSON Schemas for every structured LLM leg. The same document
// serves two jobs: it rides along on CompleteWithSchema so the provider
// constrains decoding, and the Processor validates the returned JSON
// against it before anything is decoded into a Go struct. Optional
// fields accept null because models emit null for "not stated" about as
// often as they omit the key.

// IntentSchema validates the structured intent produced from a free-text
// activity request.
//
// Structure:
//
//	{
//	  "activity_type": "running",
//	  "location": "Vienna",
//	  "search_query": "running routes Vienna city center",
//	  "preferences": ["scenic", "flat"],
//	  "search_radius_km": 25,
//	  "is_generic": true,
//	  "needs_clarification": true,
//	  ...
//	}
const IntentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["activity_type", "location", "search_query", "is_generic", "needs_clarification"],
  "additionalProperties": false,
  "properties": {
    "activity_type": {
      "type": "string",
      "description": "Activity category (hiking, running, cycling, swimming, climbing, walking, general)"
    },
    "location": {
      "type": "string",
      "description": "Where the user wants to be active"
    },
    "weather_condition": {
      "type": ["string", "null"],
      "description": "Current weather if already known, otherwise empty"
    },
    "search_query": {
      "type": "string",
      "description": "Web search query built from the request"
    },
    "preferences": {
      "type": ["array", "null"],
      "items": {"type": "string"},
      "description": "Free-form preferences mentioned by the user"
    },
    "search_radius_km": {
      "type": ["integer", "null"],
      "minimum": 1,
      "maximum": 500,
      "description": "Search radius inferred from context (default 25)"
    },
    "indoor_outdoor": {
      "type": ["string", "null"],
      "description": "indoor, outdoor, or both"
    },
    "difficulty_preference": {
      "type": ["string", "null"],
      "description": "easy, moderate, hard, or challenging when mentioned"
    },
    "duration_preference": {
      "type": ["string", "null"],
      "description": "short, medium, long, or full day when mentioned"
    },
    "elevation_preference": {
      "type": ["string", "null"],
      "description": "flat, rolling, hilly, or mountainous when mentioned"
    },
    "surface_preference": {
      "type": ["string", "null"],
      "description": "pavement, trails, or mixed when mentioned"
    },
    "starting_point": {
      "type": ["string", "null"],
      "description": "Specific starting location when mentioned"
    },
    "distance_preference": {
      "type": ["string", "null"],
      "description": "Specific distance when mentioned (e.g. 5km, 10 miles)"
    },
    "is_generic": {
      "type": "boolean",
      "description": "True when the request lacks specific details"
    },
    "needs_clarification": {
      "type": "boolean",
      "description": "True when the request is vague enough to warrant questions"
    }
  }
}`

// PageAnalysisSchema validates the classification of one fetched page.
const PageAnalysisSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["page_type", "has_multiple_activities", "activity_count", "has_detailed_metrics", "confidence"],
  "additionalProperties": false,
  "properties": {
    "page_type": {
      "type": "string",
      "enum": ["individual_activity", "activity_list", "mixed_content"],
      "description": "Structural classification of the page"
    },
    "has_multiple_activities": {
      "type": "boolean",
      "description": "Whether the page covers more than one distinct activity"
    },
    "activity_count": {
      "type": "integer",
      "minimum": 0,
      "description": "Number of distinct activities found"
    },
    "has_detailed_metrics": {
      "type": "boolean",
      "description": "Whether the page states concrete metrics (distance, elevation, time)"
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1,
      "description": "Confidence in the classification (0-1)"
    },
    "sub_urls": {
      "type": ["array", "null"],
      "items": {"type": "string"},
      "description": "Links to individual activity pages when this is a list"
    },
    "best_match_url": {
      "type": ["string", "null"],
      "description": "The sub-URL most relevant to the user intent, when clear"
    }
  }
}`

// ActivitySchema validates one extracted activity. Every metric field is
// nullable: absent from the source page means null here, never a guess.
const ActivitySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["activity_name", "location", "description", "relevance_score", "extraction_confidence", "details_available"],
  "additionalProperties": false,
  "properties": {
    "source_url": {
      "type": ["string", "null"],
      "description": "Page the activity was extracted from"
    },
    "activity_name": {
      "type": "string",
      "description": "Specific activity name, never a generic category"
    },
    "location": {
      "type": "string",
      "description": "Where the activity takes place"
    },
    "description": {
      "type": "string",
      "description": "What the activity is, with route or venue specifics"
    },
    "difficulty_level": {
      "type": ["string", "null"],
      "description": "Difficulty as stated by the source"
    },
    "duration_estimate": {
      "type": ["string", "null"],
      "description": "Duration as stated by the source"
    },
    "equipment_needed": {
      "type": ["array", "null"],
      "items": {"type": "string"},
      "description": "Equipment the source mentions"
    },
    "weather_suitability": {
      "type": ["string", "null"],
      "description": "Weather suitability as stated by the source"
    },
    "indoor_outdoor": {
      "type": ["string", "null"],
      "description": "indoor, outdoor, or both"
    },
    "distance": {
      "type": ["string", "null"],
      "description": "Distance exactly as written on the page (e.g. '6.3 km', '3.9 mi')"
    },
    "elevation_gain": {
      "type": ["string", "null"],
      "description": "Elevation gain exactly as written on the page"
    },
    "estimated_time": {
      "type": ["string", "null"],
      "description": "Completion time exactly as written on the page"
    },
    "average_rating": {
      "type": ["string", "null"],
      "description": "User rating exactly as written on the page"
    },
    "surface_type": {
      "type": ["string", "null"],
      "description": "Surface exactly as written on the page"
    },
    "starting_point": {
      "type": ["string", "null"],
      "description": "Starting location exactly as written on the page"
    },
    "route_type": {
      "type": ["string", "null"],
      "description": "loop, out-and-back, or point-to-point when stated"
    },
    "relevance_score": {
      "type": "number",
      "minimum": 0,
      "maximum": 1,
      "description": "Relevance to the user intent (0-1, strict)"
    },
    "extraction_confidence": {
      "type": "string",
      "enum": ["high", "medium", "low"],
      "description": "Confidence in the extracted data"
    },
    "details_available": {
      "type": "boolean",
      "description": "True only when at least two metrics belong to this one activity"
    }
  }
}`

// CandidateListSchema validates the candidates extracted from a list
// page before one is chosen for focused extraction.
const CandidateListSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["candidates"],
  "additionalProperties": false,
  "properties": {
    "candidates": {
      "type": "array",
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["activity_name", "brief_description", "relevance_score"],
        "additionalProperties": false,
        "properties": {
          "activity_name": {
            "type": "string",
            "description": "Name of the individual activity as it appears in the list"
          },
          "brief_description": {
            "type": "string",
            "description": "One-line description from the list entry"
          },
          "sub_url": {
            "type": ["string", "null"],
            "description": "Link to a detail page when the list provides one"
          },
          "relevance_score": {
            "type": "number",
            "minimum": 0,
            "maximum": 1,
            "description": "How well this entry matches the user intent"
          },
          "has_details": {
            "type": ["boolean", "null"],
            "description": "Whether the entry itself states concrete metrics"
          }
        }
      },
      "description": "Distinct activities found on the list page"
    }
  }
}`

// FeedbackSchema validates one classified feedback turn. extracted_updates
// carries only the fields the user actually mentioned; everything else
// stays null so the merge leaves it untouched.
const FeedbackSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["feedback_status"],
  "additionalProperties": false,
  "properties": {
    "feedback_status": {
      "type": "string",
      "enum": ["satisfied", "new_search", "refinement", "proceed", "unclear"],
      "description": "What the feedback asks the conversation to do next"
    },
    "extracted_updates": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "activity_type": {
          "type": ["string", "null"],
          "description": "New activity type when the user changed it"
        },
        "location": {
          "type": ["string", "null"],
          "description": "New location or area when the user changed it"
        },
        "search_radius_km": {
          "type": ["integer", "null"],
          "minimum": 1,
          "maximum": 500,
          "description": "New search radius when the user changed it"
        },
        "difficulty_level": {
          "type": ["string", "null"],
          "description": "New difficulty when the user changed it"
        },
        "duration_preference": {
          "type": ["string", "null"],
          "description": "New duration preference when the user changed it"
        },
        "indoor_outdoor": {
          "type": ["string", "null"],
          "description": "New indoor/outdoor preference when the user changed it"
        },
        "weather_preference": {
          "type": ["string", "null"],
          "description": "New weather preference when the user changed it"
        }
      },
      "description": "Field-wise preference delta; null fields were not mentioned"
    }
  }
}`
