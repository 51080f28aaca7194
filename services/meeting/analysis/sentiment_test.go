package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xilidan/meetings/services/meeting/entity"
)

func TestClassifyLexicon(t *testing.T) {
	tests := map[string]entity.Sentiment{
		"This is a great result, thanks everyone": entity.SentimentPositive,
		"I'm worried the launch will be delayed":  entity.SentimentNegative,
		"The meeting is at three":                 entity.SentimentNeutral,
		"That is not good":                        entity.SentimentNegative,
		"I don't disagree":                        entity.SentimentPositive,
		"GREAT":                                   entity.SentimentPositive,
		"":                                        entity.SentimentNeutral,
		"good but risky":                          entity.SentimentNeutral,
	}
	for text, want := range tests {
		assert.Equal(t, want, ClassifyLexicon(text), text)
	}
}

func TestBreakdown(t *testing.T) {
	utterances := []entity.Utterance{
		{Seq: 0, Speaker: "Ana", Text: "a", Sentiment: entity.SentimentPositive},
		{Seq: 1, Speaker: "Ben", Text: "b", Sentiment: entity.SentimentNegative},
		{Seq: 2, Speaker: "Ana", Text: "c", Sentiment: entity.SentimentNegative},
		{Seq: 3, Speaker: "Ben", Text: "d", Sentiment: entity.SentimentNegative},
		{Seq: 4, Speaker: "Cy", Text: "e"},
		{Seq: 5, Speaker: "Ben", NoSpeech: true, Sentiment: entity.SentimentPositive},
		{Seq: 6, Speaker: "Ben", Text: "f", Sentiment: entity.SentimentNeutral},
	}

	got := Breakdown(utterances)
	assert.Equal(t, []entity.SpeakerSentiment{
		{Speaker: "Ana", OverallScore: 0, Positive: 1, Negative: 1, DominantEmotion: entity.SentimentNegative},
		{Speaker: "Ben", OverallScore: -2.0 / 3.0, Negative: 2, Neutral: 1, DominantEmotion: entity.SentimentNegative},
	}, got)
}

func TestBreakdownEmpty(t *testing.T) {
	got := Breakdown(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
