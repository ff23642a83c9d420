package transcript

import (
	"fmt"
	"math"
	"strings"
)

const noContentPlaceholder = "No transcript content found."

// Text flattens a record to plain text, one caption per line. Caption texts
// are trimmed and empty ones dropped. When the record carries no captions
// the raw text field is returned as-is, or a placeholder if that is empty
// too.
func Text(rec *Record) string {
	if len(rec.Captions) == 0 {
		if rec.Text != "" {
			return rec.Text
		}
		return noContentPlaceholder
	}

	lines := make([]string, 0, len(rec.Captions))
	for _, c := range rec.Captions {
		if text := strings.TrimSpace(c.Text); text != "" {
			lines = append(lines, text)
		}
	}

	return strings.Join(lines, "\n")
}

// Structured builds the timestamped output document. Captions whose trimmed
// text is empty are dropped everywhere, including from the full text.
func Structured(rec *Record, videoID string) *Document {
	doc := &Document{
		VideoID:    videoID,
		Title:      rec.Title,
		Transcript: []Entry{},
	}
	if doc.Title == "" {
		doc.Title = "Unknown"
	}

	texts := make([]string, 0, len(rec.Captions))
	for _, c := range rec.Captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		doc.Transcript = append(doc.Transcript, Entry{
			Start:    c.Start,
			Duration: c.Duration,
			Text:     text,
		})
	}
	doc.FullText = strings.Join(texts, " ")

	return doc
}

// SRT renders the captions as SubRip cues. Empty captions are skipped and
// do not consume a sequence number. Records without captions render empty.
func SRT(rec *Record) string {
	cues := make([]string, 0, len(rec.Captions))
	for _, c := range rec.Captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		cues = append(cues, fmt.Sprintf("%d\n%s --> %s\n%s",
			len(cues)+1, srtTimestamp(c.Start), srtTimestamp(c.Start+c.Duration), text))
	}
	if len(cues) == 0 {
		return ""
	}

	return strings.Join(cues, "\n\n") + "\n"
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3600000, ms%3600000/60000, ms%60000/1000, ms%1000)
}
