package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xilidan/meetings/services/meeting/entity"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, json or yaml)", s)
}

type Formatter struct {
	w      io.Writer
	format Format
}

func NewFormatter(w io.Writer, format Format) *Formatter {
	return &Formatter{w: w, format: format}
}

func (f *Formatter) Structured() bool {
	return f.format != FormatText
}

// encode writes v as JSON or YAML. YAML goes through JSON first so both
// formats use the same field names.
func (f *Formatter) encode(v any) error {
	if f.format == FormatJSON {
		enc := json.NewEncoder(f.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(f.w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func (f *Formatter) Info(msg string) {
	if f.Structured() {
		return
	}
	fmt.Fprintln(f.w, msg)
}

func (f *Formatter) Meeting(m *entity.Meeting) error {
	if f.Structured() {
		return f.encode(m)
	}

	fmt.Fprintf(f.w, "ID:           %s\n", m.ID)
	fmt.Fprintf(f.w, "Name:         %s\n", m.Name)
	fmt.Fprintf(f.w, "Status:       %s\n", m.Status)
	fmt.Fprintf(f.w, "Started:      %s\n", m.StartedAt.Format(time.RFC3339))
	if m.EndedAt != nil {
		fmt.Fprintf(f.w, "Ended:        %s\n", m.EndedAt.Format(time.RFC3339))
	}
	if len(m.Participants) > 0 {
		fmt.Fprintf(f.w, "Participants: %s\n", strings.Join(m.Participants, ", "))
	}
	fmt.Fprintf(f.w, "Utterances:   %d\n", m.UtteranceCount)
	fmt.Fprintf(f.w, "Chunks:       %d (stored %d, ignored %d, failed %d, lost %d)\n",
		m.ChunkCount, m.Stats.Stored, m.Stats.Ignored, m.Stats.Failed, m.Stats.Lost)
	if m.NoAudio {
		fmt.Fprintln(f.w, "No audio:     true")
	}
	return nil
}

func (f *Formatter) Meetings(list []entity.MeetingSummary) error {
	if f.Structured() {
		return f.encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(f.w, "No meetings found")
		return nil
	}

	w := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTARTED\tUTTERANCES")
	for _, m := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", m.ID, m.Name, m.Status, m.StartedAt.Format(time.RFC3339), m.UtteranceCount)
	}
	return w.Flush()
}

func (f *Formatter) Ingest(res *entity.IngestResult) error {
	if f.Structured() {
		return f.encode(res)
	}

	fmt.Fprintf(f.w, "Status: %s\n", res.Status)
	if res.Utterance != nil {
		f.line(*res.Utterance)
	}
	return nil
}

func (f *Formatter) Utterance(u *entity.Utterance) error {
	if f.Structured() {
		return f.encode(u)
	}
	f.line(*u)
	return nil
}

func (f *Formatter) Utterances(list []entity.Utterance) error {
	if f.Structured() {
		return f.encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(f.w, "No matching utterances")
		return nil
	}
	for _, u := range list {
		f.line(u)
	}
	return nil
}

// Transcript prints a transcript view. In text mode only the utterances are
// printed so repeated reads append cleanly.
func (f *Formatter) Transcript(v *entity.TranscriptView) error {
	if f.Structured() {
		return f.encode(v)
	}
	for _, u := range v.Utterances {
		f.line(u)
	}
	return nil
}

func (f *Formatter) line(u entity.Utterance) {
	if u.NoSpeech {
		fmt.Fprintf(f.w, "#%d [%s] %s: (no speech)\n", u.Seq, clock(u.Timestamp), u.Speaker)
		return
	}
	fmt.Fprintf(f.w, "#%d [%s] %s: %s\n", u.Seq, clock(u.Timestamp), u.Speaker, u.Text)
}

func (f *Formatter) Analysis(res *entity.AnalysisResult) error {
	if f.Structured() {
		return f.encode(res)
	}

	fmt.Fprintf(f.w, "Summary\n  %s\n", res.Summary)
	if res.Degraded {
		fmt.Fprintln(f.w, "  (language model unavailable, extractive fallback)")
	}

	if len(res.KeyPoints) > 0 {
		fmt.Fprintln(f.w, "\nKey points")
		for _, p := range res.KeyPoints {
			fmt.Fprintf(f.w, "  - %s\n", p)
		}
	}
	if len(res.Decisions) > 0 {
		fmt.Fprintln(f.w, "\nDecisions")
		for _, d := range res.Decisions {
			fmt.Fprintf(f.w, "  - [%s] %s%s\n", d.Status, d.Description, owner(d.Owner))
		}
	}
	if len(res.ActionItems) > 0 {
		fmt.Fprintln(f.w, "\nAction items")
		for _, a := range res.ActionItems {
			due := ""
			if a.DueDate != "" {
				due = ", due " + a.DueDate
			}
			fmt.Fprintf(f.w, "  - [%s] %s%s%s\n", a.Priority, a.Description, owner(a.Owner), due)
		}
	}
	if len(res.Speakers) > 0 {
		fmt.Fprintln(f.w, "\nSentiment")
		w := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  SPEAKER\tSCORE\tPOS\tNEU\tNEG\tDOMINANT")
		for _, s := range res.Speakers {
			fmt.Fprintf(w, "  %s\t%+.2f\t%d\t%d\t%d\t%s\n", s.Speaker, s.OverallScore, s.Positive, s.Neutral, s.Negative, s.DominantEmotion)
		}
		return w.Flush()
	}
	return nil
}

func (f *Formatter) Answer(a *entity.QueryAnswer) error {
	if f.Structured() {
		return f.encode(a)
	}

	fmt.Fprintf(f.w, "%s\n", a.Answer)
	if len(a.RelevantChunks) > 0 {
		fmt.Fprintln(f.w, "\nSources")
		for _, u := range a.RelevantChunks {
			f.line(u)
		}
	}
	return nil
}

func (f *Formatter) Speakers(list []entity.SpeakerSummary) error {
	if f.Structured() {
		return f.encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(f.w, "No speakers yet")
		return nil
	}

	w := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPEAKER\tUTTERANCES\tPOS\tNEU\tNEG\tPENDING")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Speaker, s.Utterances, s.Positive, s.Neutral, s.Negative, s.Pending)
	}
	return w.Flush()
}

func owner(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}

func clock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
