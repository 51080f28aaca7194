package analysis

import (
	"fmt"
	"strings"

	"github.com/xilidan/meetings/services/meeting/entity"
)

const analysisPrompt = `You analyze board and team meetings. Read the transcript and extract its key knowledge.

Transcript:
%s

Respond with STRICT JSON only, no markdown, no explanations:
{
  "summary": "3-5 sentence summary",
  "key_points": ["point"],
  "decisions": [{"description": "what was decided", "owner": "who proposed or owns it", "status": "decided|pending|rejected"}],
  "action_items": [{"description": "task", "owner": "person or team", "due_date": "deadline if mentioned", "priority": "high|medium|low"}]
}`

const sentimentPrompt = `Classify the sentiment of each meeting statement as positive, neutral or negative.

Statements:
%s

Respond with STRICT JSON only, no markdown, no explanations:
{"sentiments": [{"seq": 0, "sentiment": "positive|neutral|negative"}]}`

// FormatTranscript renders utterances one per line as "[mm:ss] Speaker: text".
func FormatTranscript(utterances []entity.Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		total := int(u.Timestamp)
		fmt.Fprintf(&b, "[%02d:%02d] %s: %s\n", total/60, total%60, u.Speaker, u.Text)
	}
	return b.String()
}

func buildAnalysisPrompt(utterances []entity.Utterance) string {
	return fmt.Sprintf(analysisPrompt, FormatTranscript(utterances))
}

func buildSentimentPrompt(batch []entity.Utterance) string {
	var b strings.Builder
	for _, u := range batch {
		fmt.Fprintf(&b, "%d. %s: %s\n", u.Seq, u.Speaker, u.Text)
	}
	return fmt.Sprintf(sentimentPrompt, b.String())
}
