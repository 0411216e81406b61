package intent

import "strings"

// Definition describes one intent the classifier can produce.
type Definition struct {
	ID                 string `json:"id"`
	Label              string `json:"label"`
	Subsystem          string `json:"subsystem"`
	EntryType          string `json:"entryType,omitempty"`
	AllowedInEntryChat bool   `json:"allowedInEntryChat"`
}

// Classifier ids.
const (
	LabelConversational = "conversational"
	LabelEntryCreate    = "entry_create"
	LabelEntryDiscuss   = "entry_discuss"
	LabelEntryAppend    = "entry_append"
	LabelCommand        = "command"
	LabelSearchQuery    = "search_query"
)

// UnknownID marks a definition synthesised for an unrecognised label.
const UnknownID = "unknown"

var definitions = []Definition{
	{ID: LabelConversational, Label: "Conversational", Subsystem: "entries", EntryType: "journal", AllowedInEntryChat: true},
	{ID: LabelEntryCreate, Label: "Entry Create", Subsystem: "entries", EntryType: "journal"},
	{ID: LabelEntryDiscuss, Label: "Entry Discuss", Subsystem: "entries", EntryType: "journal", AllowedInEntryChat: true},
	{ID: LabelEntryAppend, Label: "Entry Append", Subsystem: "entries", EntryType: "journal", AllowedInEntryChat: true},
	{ID: LabelCommand, Label: "Command", Subsystem: "user_config"},
	{ID: LabelSearchQuery, Label: "Search Query", Subsystem: "knowledge", AllowedInEntryChat: true},
}

var (
	byLabel = make(map[string]Definition, len(definitions))
	byID    = make(map[string]Definition, len(definitions))
)

func init() {
	for _, d := range definitions {
		byLabel[strings.ToLower(d.Label)] = d
		byID[d.ID] = d
	}
}

func defaultDefinition() Definition {
	return definitions[0]
}

// Definitions returns every known definition in declaration order.
func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}

// Lookup resolves a display label ("Entry Create") case-insensitively. The
// PascalCase and snake_case spellings of a label resolve too. Unknown
// labels yield the conversational defaults with id "unknown" and ok false.
func Lookup(label string) (Definition, bool) {
	trimmed := strings.TrimSpace(label)
	normalized := strings.ToLower(trimmed)
	if normalized == "" || normalized == "label" {
		normalized = "journal entry"
	}
	if d, ok := byLabel[normalized]; ok {
		return d, true
	}
	if d, ok := byLabel[strings.ToLower(ToTitleCase(ToSnakeCase(trimmed)))]; ok {
		return d, true
	}

	d := defaultDefinition()
	d.ID = UnknownID
	d.Label = trimmed
	if d.Label == "" {
		d.Label = defaultDefinition().Label
	}
	return d, false
}

// ByID resolves a classifier id. Unknown ids yield the conversational
// defaults with id and label set to the input.
func ByID(id string) (Definition, bool) {
	if d, ok := byID[id]; ok {
		return d, true
	}
	d := defaultDefinition()
	d.ID = id
	d.Label = id
	return d, false
}

// EntryChatAllowed lists the ids permitted inside an entry conversation.
func EntryChatAllowed() []string {
	var ids []string
	for _, d := range definitions {
		if d.AllowedInEntryChat {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
