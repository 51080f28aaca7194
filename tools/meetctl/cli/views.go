package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xilidan/meetings/tools/meetctl/client"
)

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".pcm":  "audio/pcm",
	".raw":  "audio/pcm",
}

func mimeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func NewSendCmd(deps *Dependencies) *cobra.Command {
	var (
		mimeType string
		speaker  string
		async    bool
	)

	cmd := &cobra.Command{
		Use:   "send MEETING_ID FILE",
		Short: "Upload an audio chunk for transcription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read audio file: %w", err)
			}
			if mimeType == "" {
				mimeType = mimeFor(args[1])
			}

			res, err := c.SubmitAudio(cmd.Context(), args[0], client.AudioChunk{
				Data:     data,
				Filename: filepath.Base(args[1]),
				MimeType: mimeType,
				Speaker:  speaker,
				Async:    async,
			})
			if err != nil {
				return err
			}
			return formatter.Ingest(res)
		},
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "audio MIME type (inferred from the file extension)")
	cmd.Flags().StringVar(&speaker, "speaker", "", "speaker hint for the chunk")
	cmd.Flags().BoolVar(&async, "async", false, "return once the chunk is queued")
	return cmd
}

func NewTranscriptCmd(deps *Dependencies) *cobra.Command {
	var (
		since    int
		follow   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "transcript MEETING_ID",
		Short: "Print a meeting transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			id := args[0]
			etag := ""

			for {
				view, tag, modified, err := c.Transcript(ctx, id, since, etag)
				if err != nil {
					return err
				}
				if modified {
					etag = tag
					if err := formatter.Transcript(view); err != nil {
						return err
					}
					since = view.UtteranceCount
				}
				if !follow {
					return nil
				}

				// The final transcript read above already covers everything
				// appended before the end transition.
				meeting, err := c.GetMeeting(ctx, id)
				if err != nil {
					return err
				}
				if !meeting.Active() && since >= meeting.UtteranceCount {
					formatter.Info("Meeting ended")
					return nil
				}

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().IntVar(&since, "since", 0, "first sequence number to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling until the meeting ends")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --follow")
	return cmd
}

func NewAnalyzeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze MEETING_ID",
		Short: "Summarize a meeting and extract its action items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			res, err := c.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return formatter.Analysis(res)
		},
	}
}

func NewAskCmd(deps *Dependencies) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "ask MEETING_ID QUESTION...",
		Short: "Ask a question about a meeting",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			ask := c.Ask
			if full {
				ask = c.AskFull
			}
			answer, err := ask(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return formatter.Answer(answer)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "answer from the whole transcript instead of the most relevant excerpts")
	return cmd
}

func NewTopicsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "topics MEETING_ID TOPIC...",
		Short: "Find utterances that mention a topic",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			list, err := c.Topics(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return formatter.Utterances(list)
		},
	}
}

func NewSpeakersCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "speakers MEETING_ID",
		Short: "Show per-speaker talk time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			list, err := c.Speakers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return formatter.Speakers(list)
		},
	}
}
