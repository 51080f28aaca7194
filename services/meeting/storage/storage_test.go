package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/meeting/entity"
)

func testStores(t *testing.T) map[string]Storage {
	stores := map[string]Storage{"memory": New()}

	if dsn := os.Getenv("MEETINGS_TEST_DATABASE_URL"); dsn != "" {
		pg, err := NewPostgres(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		stores["postgres"] = pg
	}
	return stores
}

func newMeeting(id string, started time.Time) *entity.Meeting {
	return &entity.Meeting{
		ID:           id,
		Name:         "Board Sync",
		Participants: []string{"Ana", "Ben"},
		Status:       entity.StatusActive,
		StartedAt:    started,
	}
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

func TestStorage_MeetingLifecycle(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			m := newMeeting(uniqueID("lifecycle"), started)

			require.NoError(t, s.CreateMeeting(ctx, m))
			err := s.CreateMeeting(ctx, m)
			assert.True(t, errors.IsAlreadyExists(err))

			got, err := s.GetMeeting(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, m.Name, got.Name)
			assert.Equal(t, []string{"Ana", "Ben"}, got.Participants)
			assert.Nil(t, got.EndedAt)

			ended := started.Add(time.Minute)
			got.Status = entity.StatusEnded
			got.EndedAt = &ended
			got.Stats.Ignored = 2
			require.NoError(t, s.UpdateMeeting(ctx, got))

			again, err := s.GetMeeting(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, entity.StatusEnded, again.Status)
			require.NotNil(t, again.EndedAt)
			assert.True(t, ended.Equal(*again.EndedAt))
			assert.Equal(t, 2, again.Stats.Ignored)

			_, err = s.GetMeeting(ctx, uniqueID("missing"))
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestStorage_GetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := newMeeting("copy", time.Now())
	require.NoError(t, s.CreateMeeting(ctx, m))

	got, err := s.GetMeeting(ctx, "copy")
	require.NoError(t, err)
	got.Participants[0] = "Mallory"
	got.Status = entity.StatusEnded

	again, err := s.GetMeeting(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Participants[0])
	assert.Equal(t, entity.StatusActive, again.Status)
}

func TestStorage_ListMostRecentFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateMeeting(ctx, newMeeting("a", base)))
	require.NoError(t, s.CreateMeeting(ctx, newMeeting("c", base.Add(2*time.Minute))))
	require.NoError(t, s.CreateMeeting(ctx, newMeeting("b", base.Add(time.Minute))))

	list, err := s.ListMeetings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}

func TestStorage_AppendAndRead(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newMeeting(uniqueID("append"), time.Now().UTC())
			require.NoError(t, s.CreateMeeting(ctx, m))

			for i, text := range []string{"first", "second", "third"} {
				u := &entity.Utterance{ID: uuid.New(), Speaker: "Ana", Text: text, Timestamp: float64(i), Source: entity.SourceText}
				require.NoError(t, s.AppendUtterance(ctx, m, u))
				assert.Equal(t, i, u.Seq)
			}

			all, err := s.Utterances(ctx, m.ID, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "first", all[0].Text)
			assert.Equal(t, "third", all[2].Text)

			tail, err := s.Utterances(ctx, m.ID, 2)
			require.NoError(t, err)
			require.Len(t, tail, 1)
			assert.Equal(t, "third", tail[0].Text)

			none, err := s.Utterances(ctx, m.ID, 10)
			require.NoError(t, err)
			assert.Empty(t, none)

			err = s.AppendUtterance(ctx, newMeeting(uniqueID("missing"), time.Now().UTC()), &entity.Utterance{ID: uuid.New(), Source: entity.SourceText})
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestStorage_AppendSavesMeeting(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newMeeting(uniqueID("counters"), time.Now().UTC())
			require.NoError(t, s.CreateMeeting(ctx, m))

			m.UtteranceCount = 1
			m.Stats.Stored = 1
			m.LastTimestamp = 12.5
			require.NoError(t, s.AppendUtterance(ctx, m, &entity.Utterance{ID: uuid.New(), Speaker: "Ana", Text: "hello", Timestamp: 12.5, Source: entity.SourceText}))

			got, err := s.GetMeeting(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.UtteranceCount)
			assert.Equal(t, 1, got.Stats.Stored)
			assert.Equal(t, 12.5, got.LastTimestamp)

			missing := newMeeting(uniqueID("missing"), time.Now().UTC())
			missing.UtteranceCount = 1
			err = s.AppendUtterance(ctx, missing, &entity.Utterance{ID: uuid.New(), Source: entity.SourceText})
			assert.True(t, errors.IsNotFound(err))
			_, err = s.GetMeeting(ctx, missing.ID)
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestStorage_SetSentimentsKeepsExisting(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newMeeting(uniqueID("sentiment"), time.Now().UTC())
			require.NoError(t, s.CreateMeeting(ctx, m))

			for _, text := range []string{"great", "bad"} {
				require.NoError(t, s.AppendUtterance(ctx, m, &entity.Utterance{ID: uuid.New(), Speaker: "Ana", Text: text, Source: entity.SourceText}))
			}

			require.NoError(t, s.SetSentiments(ctx, m.ID, map[int]entity.Sentiment{0: entity.SentimentPositive}))
			require.NoError(t, s.SetSentiments(ctx, m.ID, map[int]entity.Sentiment{
				0: entity.SentimentNegative,
				1: entity.SentimentNegative,
				7: entity.SentimentNeutral,
			}))

			all, err := s.Utterances(ctx, m.ID, 0)
			require.NoError(t, err)
			assert.Equal(t, entity.SentimentPositive, all[0].Sentiment)
			assert.Equal(t, entity.SentimentNegative, all[1].Sentiment)
		})
	}
}

func TestStorage_ConcurrentAppendsAssignDistinctSeq(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := newMeeting("race", time.Now())
	require.NoError(t, s.CreateMeeting(ctx, m))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendUtterance(ctx, m, &entity.Utterance{ID: uuid.New(), Text: "x"}))
		}()
	}
	wg.Wait()

	all, err := s.Utterances(ctx, "race", 0)
	require.NoError(t, err)
	require.Len(t, all, 50)
	for i, u := range all {
		assert.Equal(t, i, u.Seq)
	}
}
