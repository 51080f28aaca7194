package analysis

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xilidan/meetings/services/meeting/entity"
)

// ExtractJSON locates the JSON object in a model reply. Models often wrap
// the object in prose or code fences, so when the whole reply is not valid
// JSON the span from the first '{' to the last '}' is tried.
func ExtractJSON(reply string) (gjson.Result, bool) {
	reply = strings.TrimSpace(reply)
	if gjson.Valid(reply) {
		r := gjson.Parse(reply)
		return r, r.IsObject()
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}

	candidate := reply[start : end+1]
	if !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	r := gjson.Parse(candidate)
	return r, r.IsObject()
}

type structured struct {
	Summary     string
	KeyPoints   []string
	Decisions   []entity.Decision
	ActionItems []entity.ActionItem
	// SummaryOK is false when the summary field was missing or malformed.
	SummaryOK bool
}

// parseStructured reads each field independently; a malformed field yields
// its empty value without affecting the others.
func parseStructured(doc gjson.Result) structured {
	var s structured

	if summary := doc.Get("summary"); summary.Type == gjson.String && strings.TrimSpace(summary.String()) != "" {
		s.Summary = strings.TrimSpace(summary.String())
		s.SummaryOK = true
	}

	s.KeyPoints = []string{}
	if points := doc.Get("key_points"); points.IsArray() {
		for _, p := range points.Array() {
			if p.Type == gjson.String && strings.TrimSpace(p.String()) != "" {
				s.KeyPoints = append(s.KeyPoints, strings.TrimSpace(p.String()))
			}
		}
	}

	s.Decisions = []entity.Decision{}
	if decisions := doc.Get("decisions"); decisions.IsArray() {
		for _, d := range decisions.Array() {
			desc := firstString(d, "description", "decision")
			if desc == "" {
				continue
			}
			s.Decisions = append(s.Decisions, entity.Decision{
				ID:          fmt.Sprintf("decision_%d", len(s.Decisions)+1),
				Description: desc,
				Owner:       firstString(d, "owner", "proposed_by"),
				Status:      decisionStatus(d.Get("status").String()),
			})
		}
	}

	s.ActionItems = []entity.ActionItem{}
	if items := doc.Get("action_items"); items.IsArray() {
		for _, a := range items.Array() {
			desc := firstString(a, "description", "task")
			if desc == "" {
				continue
			}
			s.ActionItems = append(s.ActionItems, entity.ActionItem{
				ID:          fmt.Sprintf("action_%d", len(s.ActionItems)+1),
				Description: desc,
				Owner:       firstString(a, "owner"),
				DueDate:     firstString(a, "due_date", "deadline"),
				Priority:    priority(a.Get("priority").String()),
			})
		}
	}

	return s
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func decisionStatus(s string) entity.DecisionStatus {
	switch entity.DecisionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case entity.DecisionPending:
		return entity.DecisionPending
	case entity.DecisionRejected:
		return entity.DecisionRejected
	default:
		return entity.DecisionDecided
	}
}

func priority(s string) entity.Priority {
	switch entity.Priority(strings.ToLower(strings.TrimSpace(s))) {
	case entity.PriorityHigh:
		return entity.PriorityHigh
	case entity.PriorityLow:
		return entity.PriorityLow
	default:
		return entity.PriorityMedium
	}
}
