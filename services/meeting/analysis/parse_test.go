package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xilidan/meetings/services/meeting/entity"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ok    bool
	}{
		{"plain object", `{"summary":"x"}`, true},
		{"code fence", "```json\n{\"summary\":\"x\"}\n```", true},
		{"prose around", `Here you go: {"summary":"x"} Hope it helps.`, true},
		{"array is not an object", `["x"]`, false},
		{"no braces", "I cannot help with that.", false},
		{"broken", `{"summary": "x"`, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ok := ExtractJSON(tt.reply)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, "x", doc.Get("summary").String())
			}
		})
	}
}

func TestParseStructured(t *testing.T) {
	doc, ok := ExtractJSON(`{
		"summary": "  Budget review. ",
		"key_points": ["Travel is over budget", "", 7],
		"decisions": [
			{"description": "Cut travel by 10%", "owner": "Ana", "status": "DECIDED"},
			{"decision": "Revisit hiring", "proposed_by": "Ben", "status": "pending"},
			{"owner": "nobody"}
		],
		"action_items": [
			{"task": "Draft new travel policy", "owner": "Ben", "deadline": "Friday", "priority": "High"},
			{"description": "Share notes", "priority": "urgent"}
		]
	}`)
	require.True(t, ok)

	s := parseStructured(doc)
	assert.True(t, s.SummaryOK)
	assert.Equal(t, "Budget review.", s.Summary)
	assert.Equal(t, []string{"Travel is over budget"}, s.KeyPoints)

	assert.Equal(t, []entity.Decision{
		{ID: "decision_1", Description: "Cut travel by 10%", Owner: "Ana", Status: entity.DecisionDecided},
		{ID: "decision_2", Description: "Revisit hiring", Owner: "Ben", Status: entity.DecisionPending},
	}, s.Decisions)

	assert.Equal(t, []entity.ActionItem{
		{ID: "action_1", Description: "Draft new travel policy", Owner: "Ben", DueDate: "Friday", Priority: entity.PriorityHigh},
		{ID: "action_2", Description: "Share notes", Priority: entity.PriorityMedium},
	}, s.ActionItems)
}

func TestParseStructuredMalformedFields(t *testing.T) {
	doc, ok := ExtractJSON(`{"summary": 12, "key_points": "not a list", "decisions": {"a": 1}, "action_items": null}`)
	require.True(t, ok)

	s := parseStructured(doc)
	assert.False(t, s.SummaryOK)
	assert.Empty(t, s.Summary)
	assert.NotNil(t, s.KeyPoints)
	assert.Empty(t, s.KeyPoints)
	assert.NotNil(t, s.Decisions)
	assert.Empty(t, s.Decisions)
	assert.NotNil(t, s.ActionItems)
	assert.Empty(t, s.ActionItems)
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]entity.Utterance{
		{Speaker: "Ana", Text: "Hello", Timestamp: 5.4},
		{Speaker: "Ben", Text: "Hi", Timestamp: 125},
	})
	assert.Equal(t, "[00:05] Ana: Hello\n[02:05] Ben: Hi\n", got)
}
