package display

// Severity is the semantic color of the status area.
type Severity int

const (
	Neutral Severity = iota
	Info
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Error:
		return "error"
	default:
		return "neutral"
	}
}

// StatusSink is the multi-line status area.
type StatusSink interface {
	// SetStatus replaces the text and its severity.
	SetStatus(text string, severity Severity)

	// AppendStatus adds text as a new paragraph and recolors the whole area.
	AppendStatus(text string, severity Severity)
}

// ElapsedSink is the single-line elapsed time area.
type ElapsedSink interface {
	SetElapsed(text string)
}

// Sink is both display regions.
type Sink interface {
	StatusSink
	ElapsedSink
}

// ParagraphSeparator goes between the existing status text and an appended one.
const ParagraphSeparator = "\n\n"

// Join appends text to current the way AppendStatus does.
func Join(current, text string) string {
	if current == "" {
		return text
	}
	return current + ParagraphSeparator + text
}
