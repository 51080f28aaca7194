package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/pkg/json"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/ingest"
	"github.com/xilidan/meetings/services/meeting/usecase"
)

const (
	chunkField    = "chunk"
	speakerField  = "speaker"
	speakerHeader = "X-Speaker"
)

type Config struct {
	JWTSecret     string
	MaxChunkBytes int
}

type Handler struct {
	usecase   usecase.Usecase
	jwtSecret string
	maxBytes  int
	log       *slog.Logger
}

func New(cfg Config, uc usecase.Usecase, log *slog.Logger) *Handler {
	log.Debug("creating new handler", slog.Bool("auth_enabled", cfg.JWTSecret != ""))

	maxBytes := cfg.MaxChunkBytes
	if maxBytes <= 0 {
		maxBytes = ingest.DefaultMaxChunkBytes
	}
	return &Handler{
		usecase:   uc,
		jwtSecret: cfg.JWTSecret,
		maxBytes:  maxBytes,
		log:       log.With(slog.String("component", "meet_handler")),
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ListMeetingsResponse struct {
	Meetings []entity.MeetingSummary `json:"meetings"`
}

type TopicsResponse struct {
	Topic      string             `json:"topic"`
	Utterances []entity.Utterance `json:"utterances"`
}

type SpeakersResponse struct {
	Speakers []entity.SpeakerSummary `json:"speakers"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	h.log.Debug("registering HTTP routes")

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", h.HealthCheck)

		api.Route("/meetings", func(meetings chi.Router) {
			meetings.Use(h.Authenticate)

			meetings.Post("/", h.StartMeeting)
			meetings.Get("/", h.ListMeetings)

			meetings.Route("/{id}", func(m chi.Router) {
				m.Get("/", h.GetMeeting)
				m.Post("/end", h.EndMeeting)
				m.Post("/audio", h.SubmitAudio)
				m.Post("/chunks", h.SubmitText)
				m.Get("/transcript", h.GetTranscript)
				m.Get("/analysis", h.Analyze)
				m.Post("/query", h.Query)
				m.Post("/ask", h.Ask)
				m.Get("/topics", h.Topics)
				m.Get("/speakers", h.Speakers)
			})
		})
	})

	h.log.Info("all routes registered successfully")
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("health check request received", slog.String("remote_addr", r.RemoteAddr))
	json.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) StartMeeting(w http.ResponseWriter, r *http.Request) {
	var req entity.StartMeetingRequest
	if err := json.ParseJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	meeting, err := h.usecase.StartMeeting(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("meeting started via api", slog.String("meeting_id", meeting.ID))
	json.WriteJSON(w, http.StatusCreated, meeting)
}

func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	list, err := h.usecase.ListMeetings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, ListMeetingsResponse{Meetings: list})
}

func (h *Handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.usecase.GetMeeting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, meeting)
}

func (h *Handler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meeting, err := h.usecase.EndMeeting(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("meeting ended via api", slog.String("meeting_id", id))
	json.WriteJSON(w, http.StatusOK, meeting)
}

// SubmitAudio accepts either a multipart form with the audio in the "chunk"
// field or the raw audio as the request body.
func (h *Handler) SubmitAudio(w http.ResponseWriter, r *http.Request) {
	req, err := h.readAudio(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req.MeetingID = chi.URLParam(r, "id")

	if v := r.URL.Query().Get("async"); v != "" {
		async, err := strconv.ParseBool(v)
		if err != nil {
			h.fail(w, r, fmt.Errorf("async must be a boolean: %w", errors.ErrValidation))
			return
		}
		req.Async = async
	}

	h.log.Debug("audio chunk received",
		slog.String("meeting_id", req.MeetingID),
		slog.String("mime_type", req.MimeType),
		slog.Int("bytes", len(req.Data)),
		slog.Bool("async", req.Async),
	)

	res, err := h.usecase.SubmitAudio(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Status == entity.IngestAccepted {
		status = http.StatusAccepted
	}
	json.WriteJSON(w, status, res)
}

func (h *Handler) readAudio(w http.ResponseWriter, r *http.Request) (*entity.AudioChunkRequest, error) {
	req := &entity.AudioChunkRequest{}
	limit := int64(h.maxBytes) + 1

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
		if err := r.ParseMultipartForm(limit); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %v: %w", err, errors.ErrValidation)
		}

		file, header, err := r.FormFile(chunkField)
		if err != nil {
			return nil, fmt.Errorf("form field %q is required: %w", chunkField, errors.ErrValidation)
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, limit))
		if err != nil {
			return nil, fmt.Errorf("failed to read audio chunk: %w", err)
		}
		req.Data = data
		req.MimeType = header.Header.Get("Content-Type")
		req.Speaker = r.FormValue(speakerField)
		return req, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio chunk: %w", err)
	}
	req.Data = data
	req.MimeType = r.Header.Get("Content-Type")
	req.Speaker = r.URL.Query().Get(speakerField)
	if req.Speaker == "" {
		req.Speaker = r.Header.Get(speakerHeader)
	}
	return req, nil
}

func (h *Handler) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req entity.TextChunkRequest
	if err := json.ParseJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.MeetingID = chi.URLParam(r, "id")

	u, err := h.usecase.SubmitText(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, u)
}

// GetTranscript serves incremental reads. The ETag changes whenever the
// transcript grows, so polling clients get 304 until there is something new.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, r, fmt.Errorf("since must be an integer: %w", errors.ErrValidation))
			return
		}
		since = n
	}

	view, err := h.usecase.Transcript(r.Context(), chi.URLParam(r, "id"), since)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	etag := transcriptETag(view)
	w.Header().Set("ETag", etag)
	if matchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	json.WriteJSON(w, http.StatusOK, view)
}

func transcriptETag(v *entity.TranscriptView) string {
	return fmt.Sprintf(`"%d-%d"`, v.UtteranceCount, v.Since)
}

func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	res, err := h.usecase.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req entity.QueryRequest
	if err := json.ParseJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.usecase.Query(r.Context(), chi.URLParam(r, "id"), req.Question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, res)
}

// Ask answers a question over the full transcript.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req entity.QueryRequest
	if err := json.ParseJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.usecase.Ask(r.Context(), chi.URLParam(r, "id"), req.Question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")

	list, err := h.usecase.Topics(r.Context(), chi.URLParam(r, "id"), topic)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, TopicsResponse{Topic: strings.TrimSpace(topic), Utterances: list})
}

func (h *Handler) Speakers(w http.ResponseWriter, r *http.Request) {
	list, err := h.usecase.Speakers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, SpeakersResponse{Speakers: list})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	}
	if kind == errors.KindInternal {
		h.log.Error("request failed", attrs...)
	} else {
		h.log.Debug("request rejected", attrs...)
	}
	json.WriteError(w, err)
}
