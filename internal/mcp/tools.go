package mcp

var memoryKinds = []string{"entry", "goal", "event", "pref", "schedule"}

// ToolDefinitions returns the tools exposed over stdio.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "handle_utterance",
			Description: "Understand one user message: retrieves related memories, classifies the intent, " +
				"fills date and title slots, masks personal data and returns the routing decision with the enriched payload.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text":         {Type: "string", Description: "The user message"},
					"topK":         {Type: "number", Description: "Context records to retrieve (1-20, default 5)", Default: 5},
					"userTimeZone": {Type: "string", Description: "IANA time zone used to resolve relative dates"},
					"kinds": {Type: "array", Description: "Memory kinds to search (default entry, goal, event, pref)",
						Items: &Items{Type: "string", Enum: memoryKinds}},
					"plan": {Type: "boolean", Description: "Also plan and execute the resulting action", Default: false},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "memory_search",
			Description: "Search cached memories by meaning and return the best matches with their similarity scores.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Natural language search query"},
					"kinds": {Type: "array", Description: "Restrict to these memory kinds",
						Items: &Items{Type: "string", Enum: memoryKinds}},
					"topK": {Type: "number", Description: "Maximum results to return (default 5)", Default: 5},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "memory_upsert",
			Description: "Store or replace one memory row so later utterances can use it as context.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"id":   {Type: "string", Description: "Stable row id"},
					"kind": {Type: "string", Description: "Memory kind", Enum: memoryKinds},
					"text": {Type: "string", Description: "Row text; <private> blocks are stripped"},
				},
				Required: []string{"id", "text"},
			},
		},
		{
			Name:        "summarize_intent",
			Description: "Render a routed intent as a short human-readable line such as \"Entry Create (94%)\".",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"label":            {Type: "string", Description: "Routed intent label, e.g. EntryCreate"},
					"confidence":       {Type: "number", Description: "Confidence 0.0-1.0"},
					"secondBest":       {Type: "string", Description: "Optional secondary label"},
					"secondConfidence": {Type: "number", Description: "Confidence of the secondary label"},
				},
				Required: []string{"label", "confidence"},
			},
		},
		{
			Name:        "context_register",
			Description: "Focus the conversation on an entry so follow-up messages are read as discussing or appending to it.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"entryId":   {Type: "string", Description: "Entry to focus"},
					"entryType": {Type: "string", Description: "journal, goal or schedule"},
					"refresh":   {Type: "boolean", Description: "Keep the current entry type when entryType is empty", Default: false},
				},
				Required: []string{"entryId"},
			},
		},
	}
}
