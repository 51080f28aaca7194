package analysis

import (
	"fmt"
	"strings"

	"github.com/xilidan/meetings/pkg/textutil"
	"github.com/xilidan/meetings/services/meeting/entity"
)

const maxFallbackPoints = 5

var (
	decidedCues  = []string{"decided", "agreed", "we agree", "approved", "final decision"}
	proposalCues = []string{"we should", "let's", "lets ", "i propose", "we could", "suggest"}
	actionCues   = []string{"need to", "needs to", "i'll", "i will", "follow up", "action item", "will send", "by monday", "by friday", "by tomorrow"}
)

// extractive backs the model when it returns nothing usable. Key points are
// the first content utterances of two or more words; decisions and action
// items come from cue phrases. The summary is left unset, so callers report
// UnavailableSummary.
func extractive(content []entity.Utterance) structured {
	s := structured{
		KeyPoints:   []string{},
		Decisions:   []entity.Decision{},
		ActionItems: []entity.ActionItem{},
	}

	for _, u := range content {
		text := strings.TrimSpace(u.Text)
		folded := textutil.Normalize(text)

		if len(s.KeyPoints) < maxFallbackPoints && len(textutil.Tokens(text)) >= 2 {
			s.KeyPoints = append(s.KeyPoints, fmt.Sprintf("%s: %s", u.Speaker, text))
		}

		switch {
		case containsAny(folded, decidedCues):
			s.Decisions = append(s.Decisions, entity.Decision{
				ID:          fmt.Sprintf("decision_%d", len(s.Decisions)+1),
				Description: text,
				Owner:       u.Speaker,
				Status:      entity.DecisionDecided,
			})
		case containsAny(folded, proposalCues):
			s.Decisions = append(s.Decisions, entity.Decision{
				ID:          fmt.Sprintf("decision_%d", len(s.Decisions)+1),
				Description: text,
				Owner:       u.Speaker,
				Status:      entity.DecisionPending,
			})
		}

		if containsAny(folded, actionCues) {
			s.ActionItems = append(s.ActionItems, entity.ActionItem{
				ID:          fmt.Sprintf("action_%d", len(s.ActionItems)+1),
				Description: text,
				Owner:       u.Speaker,
				Priority:    entity.PriorityMedium,
			})
		}
	}
	return s
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
