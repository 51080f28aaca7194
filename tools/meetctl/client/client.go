// Package client is a typed HTTP client for the meetings gateway API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xilidan/meetings/pkg/errors"
	pkgjson "github.com/xilidan/meetings/pkg/json"
	"github.com/xilidan/meetings/services/meeting/entity"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx response carrying the gateway's error envelope.
type APIError struct {
	StatusCode int
	Kind       errors.Kind
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap maps the error kind back to the shared sentinel, so callers can use
// errors.IsNotFound and friends on client errors.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case errors.KindValidation:
		return errors.ErrValidation
	case errors.KindNotFound:
		return errors.ErrNotFound
	case errors.KindInvalidState:
		return errors.ErrInvalidState
	case errors.KindTranscription:
		return errors.ErrTranscription
	case errors.KindGeneration:
		return errors.ErrGeneration
	case errors.KindUnauthorized:
		return errors.ErrUnauthorized
	}
	return nil
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type AudioChunk struct {
	Data     []byte
	Filename string
	MimeType string
	Speaker  string
	Async    bool
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

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, apiPrefix+"/health", nil, "", nil)
}

func (c *Client) StartMeeting(ctx context.Context, name string, participants []string) (*entity.Meeting, error) {
	var out entity.Meeting
	body := entity.StartMeetingRequest{Name: name, Participants: participants}
	if err := c.doJSON(ctx, http.MethodPost, meetingPath(""), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EndMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	var out entity.Meeting
	if err := c.doJSON(ctx, http.MethodPost, meetingPath(id, "end"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	var out entity.Meeting
	if err := c.doJSON(ctx, http.MethodGet, meetingPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMeetings(ctx context.Context) ([]entity.MeetingSummary, error) {
	var out ListMeetingsResponse
	if err := c.doJSON(ctx, http.MethodGet, meetingPath(""), nil, &out); err != nil {
		return nil, err
	}
	return out.Meetings, nil
}

func (c *Client) SubmitText(ctx context.Context, id, speaker, text string) (*entity.Utterance, error) {
	var out entity.Utterance
	body := entity.TextChunkRequest{Speaker: speaker, Text: text}
	if err := c.doJSON(ctx, http.MethodPost, meetingPath(id, "chunks"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAudio uploads one chunk as multipart form data.
func (c *Client) SubmitAudio(ctx context.Context, id string, chunk AudioChunk) (*entity.IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if chunk.Speaker != "" {
		if err := mw.WriteField("speaker", chunk.Speaker); err != nil {
			return nil, fmt.Errorf("failed to write speaker field: %w", err)
		}
	}

	filename := chunk.Filename
	if filename == "" {
		filename = "chunk"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="chunk"; filename=%q`, filepath.Base(filename)))
	if chunk.MimeType != "" {
		header.Set("Content-Type", chunk.MimeType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(chunk.Data); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	path := meetingPath(id, "audio")
	if chunk.Async {
		path += "?async=true"
	}

	var out entity.IngestResult
	if err := c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcript reads utterances with Seq >= since. When etag matches the
// server's current one, it returns nil and modified=false.
func (c *Client) Transcript(ctx context.Context, id string, since int, etag string) (view *entity.TranscriptView, newETag string, modified bool, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, meetingPath(id, "transcript")+"?since="+strconv.Itoa(since), nil, "")
	if err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	newETag = resp.Header.Get("ETag")
	if resp.StatusCode == http.StatusNotModified {
		return nil, newETag, false, nil
	}

	var out entity.TranscriptView
	if err := decode(resp, &out); err != nil {
		return nil, "", false, err
	}
	return &out, newETag, true, nil
}

func (c *Client) Analyze(ctx context.Context, id string) (*entity.AnalysisResult, error) {
	var out entity.AnalysisResult
	if err := c.doJSON(ctx, http.MethodGet, meetingPath(id, "analysis"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Ask(ctx context.Context, id, question string) (*entity.QueryAnswer, error) {
	var out entity.QueryAnswer
	if err := c.doJSON(ctx, http.MethodPost, meetingPath(id, "query"), entity.QueryRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskFull answers question with the whole transcript as context.
func (c *Client) AskFull(ctx context.Context, id, question string) (*entity.QueryAnswer, error) {
	var out entity.QueryAnswer
	if err := c.doJSON(ctx, http.MethodPost, meetingPath(id, "ask"), entity.QueryRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Topics(ctx context.Context, id, topic string) ([]entity.Utterance, error) {
	var out TopicsResponse
	if err := c.doJSON(ctx, http.MethodGet, meetingPath(id, "topics")+"?topic="+url.QueryEscape(topic), nil, &out); err != nil {
		return nil, err
	}
	return out.Utterances, nil
}

func (c *Client) Speakers(ctx context.Context, id string) ([]entity.SpeakerSummary, error) {
	var out SpeakersResponse
	if err := c.doJSON(ctx, http.MethodGet, meetingPath(id, "speakers"), nil, &out); err != nil {
		return nil, err
	}
	return out.Speakers, nil
}

func meetingPath(id string, parts ...string) string {
	p := apiPrefix + "/meetings"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if body == nil {
		return c.do(ctx, method, path, nil, "", out)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope pkgjson.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope); err == nil {
			apiErr.Kind = envelope.Error.Kind
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
