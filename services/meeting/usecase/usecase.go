package usecase

import (
	"context"
	"fmt"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/meeting/analysis"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/ingest"
	"github.com/xilidan/meetings/services/meeting/query"
	"github.com/xilidan/meetings/services/meeting/session"
)

type Usecase interface {
	StartMeeting(ctx context.Context, req *entity.StartMeetingRequest) (*entity.Meeting, error)
	EndMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	ListMeetings(ctx context.Context) ([]entity.MeetingSummary, error)

	SubmitAudio(ctx context.Context, req *entity.AudioChunkRequest) (*entity.IngestResult, error)
	SubmitText(ctx context.Context, req *entity.TextChunkRequest) (*entity.Utterance, error)
	Transcript(ctx context.Context, id string, since int) (*entity.TranscriptView, error)

	Analyze(ctx context.Context, id string) (*entity.AnalysisResult, error)
	Query(ctx context.Context, id, question string) (*entity.QueryAnswer, error)
	Ask(ctx context.Context, id, question string) (*entity.QueryAnswer, error)
	Topics(ctx context.Context, id, topic string) ([]entity.Utterance, error)
	Speakers(ctx context.Context, id string) ([]entity.SpeakerSummary, error)
}

type usecase struct {
	sessions *session.Manager
	pipeline *ingest.Pipeline
	analysis *analysis.Engine
	query    *query.Engine
}

func New(sessions *session.Manager, pipeline *ingest.Pipeline, analysis *analysis.Engine, query *query.Engine) Usecase {
	return &usecase{
		sessions: sessions,
		pipeline: pipeline,
		analysis: analysis,
		query:    query,
	}
}

func (u *usecase) StartMeeting(ctx context.Context, req *entity.StartMeetingRequest) (*entity.Meeting, error) {
	return u.sessions.Start(ctx, req.Name, req.Participants)
}

func (u *usecase) EndMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	return u.sessions.End(ctx, id)
}

func (u *usecase) GetMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	return u.sessions.Get(ctx, id)
}

func (u *usecase) ListMeetings(ctx context.Context) ([]entity.MeetingSummary, error) {
	return u.sessions.List(ctx)
}

func (u *usecase) SubmitAudio(ctx context.Context, req *entity.AudioChunkRequest) (*entity.IngestResult, error) {
	chunk := ingest.AudioChunk{
		Data:        req.Data,
		MimeType:    req.MimeType,
		SpeakerHint: req.Speaker,
	}
	if req.Async {
		return u.pipeline.SubmitAudioAsync(ctx, req.MeetingID, chunk)
	}
	return u.pipeline.SubmitAudio(ctx, req.MeetingID, chunk)
}

func (u *usecase) SubmitText(ctx context.Context, req *entity.TextChunkRequest) (*entity.Utterance, error) {
	return u.pipeline.SubmitText(ctx, req.MeetingID, req.Speaker, req.Text)
}

// Transcript returns the utterances with Seq >= since together with the
// total count of the snapshot they were cut from.
func (u *usecase) Transcript(ctx context.Context, id string, since int) (*entity.TranscriptView, error) {
	if since < 0 {
		return nil, fmt.Errorf("since must not be negative: %w", errors.ErrValidation)
	}

	all, err := u.sessions.Transcript(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	view := &entity.TranscriptView{
		MeetingID:      id,
		Since:          since,
		UtteranceCount: len(all),
		Utterances:     []entity.Utterance{},
	}
	if since < len(all) {
		view.Utterances = all[since:]
	}
	return view, nil
}

func (u *usecase) Analyze(ctx context.Context, id string) (*entity.AnalysisResult, error) {
	return u.analysis.Analyze(ctx, id)
}

func (u *usecase) Query(ctx context.Context, id, question string) (*entity.QueryAnswer, error) {
	return u.query.Semantic(ctx, id, question)
}

func (u *usecase) Ask(ctx context.Context, id, question string) (*entity.QueryAnswer, error) {
	return u.query.Ask(ctx, id, question)
}

func (u *usecase) Topics(ctx context.Context, id, topic string) ([]entity.Utterance, error) {
	return u.query.Topic(ctx, id, topic)
}

func (u *usecase) Speakers(ctx context.Context, id string) ([]entity.SpeakerSummary, error) {
	return u.query.Speakers(ctx, id)
}
