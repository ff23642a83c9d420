package transcript

// Record is the raw result payload of one transcription run. The provider
// is loose about which fields it includes; absent fields are not an error.
type Record struct {
	Title    string    `json:"title,omitempty"`
	Text     string    `json:"text,omitempty"`
	Captions []Caption `json:"captions,omitempty"`
}

// Caption is a single timed caption entry. Start and Duration are seconds.
type Caption struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Document is the structured output shape, ready for JSON encoding.
type Document struct {
	VideoID    string  `json:"video_id"`
	Title      string  `json:"title"`
	Transcript []Entry `json:"transcript"`
	FullText   string  `json:"full_text"`
}

// Entry is a caption retained in a Document. Its text is always trimmed
// and non-empty.
type Entry struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}
