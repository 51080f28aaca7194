package analysis

import (
	"strings"
	"unicode"

	"github.com/xilidan/meetings/pkg/textutil"
	"github.com/xilidan/meetings/services/meeting/entity"
)

var positiveWords = map[string]struct{}{
	"agree": {}, "agreed": {}, "amazing": {}, "approve": {}, "approved": {}, "awesome": {},
	"benefit": {}, "best": {}, "better": {}, "confident": {}, "excellent": {}, "excited": {},
	"fantastic": {}, "glad": {}, "good": {}, "great": {}, "happy": {}, "improve": {},
	"improved": {}, "like": {}, "love": {}, "nice": {}, "optimistic": {}, "perfect": {},
	"pleased": {}, "positive": {}, "progress": {}, "success": {}, "successful": {}, "support": {},
	"thanks": {}, "thank": {}, "win": {}, "wonderful": {}, "yes": {},
}

var negativeWords = map[string]struct{}{
	"angry": {}, "bad": {}, "blocked": {}, "blocker": {}, "broken": {}, "concern": {},
	"concerned": {}, "delay": {}, "delayed": {}, "disagree": {}, "disappointed": {}, "fail": {},
	"failed": {}, "failure": {}, "frustrated": {}, "hate": {}, "issue": {}, "late": {},
	"loss": {}, "negative": {}, "poor": {}, "problem": {}, "reject": {},
	"rejected": {}, "risk": {}, "risky": {}, "terrible": {}, "unhappy": {}, "worried": {},
	"worse": {}, "worst": {}, "wrong": {},
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "dont": {}, "don": {}, "isnt": {}, "cant": {}, "wont": {},
}

// ClassifyLexicon is the deterministic fallback classifier used when the
// language model cannot tag an utterance. A negator flips the next word.
func ClassifyLexicon(text string) entity.Sentiment {
	// Negators are stop words, so the stop-word filtering tokenizer is not used.
	words := rawWords(text)

	score := 0
	for i, w := range words {
		polarity := 0
		if _, ok := positiveWords[w]; ok {
			polarity = 1
		} else if _, ok := negativeWords[w]; ok {
			polarity = -1
		}
		if polarity == 0 {
			continue
		}
		if i > 0 {
			if _, neg := negators[words[i-1]]; neg {
				polarity = -polarity
			}
		}
		score += polarity
	}

	switch {
	case score > 0:
		return entity.SentimentPositive
	case score < 0:
		return entity.SentimentNegative
	default:
		return entity.SentimentNeutral
	}
}

func rawWords(text string) []string {
	text = strings.NewReplacer("'", "", "’", "").Replace(textutil.Fold(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Breakdown aggregates tagged content utterances per speaker, in order of
// first appearance. Untagged utterances are skipped.
func Breakdown(utterances []entity.Utterance) []entity.SpeakerSentiment {
	type tally struct {
		out     entity.SpeakerSentiment
		lastSeq map[entity.Sentiment]int
	}

	var (
		order []string
		byKey = make(map[string]*tally)
	)
	for _, u := range utterances {
		if !u.HasContent() || u.Sentiment == "" {
			continue
		}
		t, ok := byKey[u.Speaker]
		if !ok {
			t = &tally{out: entity.SpeakerSentiment{Speaker: u.Speaker}, lastSeq: make(map[entity.Sentiment]int)}
			byKey[u.Speaker] = t
			order = append(order, u.Speaker)
		}

		switch u.Sentiment {
		case entity.SentimentPositive:
			t.out.Positive++
		case entity.SentimentNegative:
			t.out.Negative++
		default:
			t.out.Neutral++
		}
		t.lastSeq[u.Sentiment] = u.Seq
	}

	out := make([]entity.SpeakerSentiment, 0, len(order))
	for _, speaker := range order {
		t := byKey[speaker]
		total := t.out.Positive + t.out.Neutral + t.out.Negative
		if total > 0 {
			t.out.OverallScore = float64(t.out.Positive-t.out.Negative) / float64(total)
		}
		t.out.DominantEmotion = dominant(t.out, t.lastSeq)
		out = append(out, t.out)
	}
	return out
}

// dominant picks the most frequent category; ties go to the category seen
// most recently.
func dominant(s entity.SpeakerSentiment, lastSeq map[entity.Sentiment]int) entity.Sentiment {
	counts := map[entity.Sentiment]int{
		entity.SentimentPositive: s.Positive,
		entity.SentimentNeutral:  s.Neutral,
		entity.SentimentNegative: s.Negative,
	}

	var (
		best      entity.Sentiment
		bestCount int
		bestSeq   = -1
	)
	for _, cat := range []entity.Sentiment{entity.SentimentPositive, entity.SentimentNeutral, entity.SentimentNegative} {
		n := counts[cat]
		if n == 0 {
			continue
		}
		seq := lastSeq[cat]
		if n > bestCount || (n == bestCount && seq > bestSeq) {
			best, bestCount, bestSeq = cat, n, seq
		}
	}
	return best
}
