package textclean

import (
	"strings"
	"unicode"
	"unicode/utf8"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// DefaultFillers are the hesitation sounds removed from transcripts. The
// set stays conservative so real words are never dropped.
var DefaultFillers = []string{"um", "uh", "er", "erm", "ah", "hmm", "mhm", "mm"}

// singlePunct maps one spoken word to the mark it dictates.
var singlePunct = map[string]string{
	"period":    ".",
	"comma":     ",",
	"colon":     ":",
	"semicolon": ";",
}

// doublePunct maps two-word commands. Line breaks are emitted as separator
// tokens rather than attached to the previous word.
var doublePunct = map[string]string{
	"question mark":     "?",
	"exclamation mark":  "!",
	"exclamation point": "!",
	"new line":          "\n",
	"new paragraph":     "\n\n",
}

// contractionsOfI are lowercase first-person forms that always take a
// capital I.
var contractionsOfI = map[string]string{
	"i": "I", "i'm": "I'm", "i'll": "I'll", "i've": "I've", "i'd": "I'd",
}

// Config holds configuration options for the text cleanup stage.
type Config struct {
	// InputKey is the context key holding the raw transcript.
	// Default: "text"
	InputKey string

	// OutputKey is the context key the cleaned text is written under. The
	// default overwrites the transcript in place.
	// Default: "text"
	OutputKey string

	// RawKey preserves the original transcript before cleaning.
	// Default: "text.raw"
	RawKey string

	// Fillers overrides the removed filler words. nil means
	// DefaultFillers; an empty non-nil slice disables filler removal.
	Fillers []string

	// SpokenPunctuation converts commands like "comma" and "question mark"
	// into marks. DefaultConfig enables it.
	SpokenPunctuation bool

	// Capitalize upcases sentence starts and first-person I.
	// DefaultConfig enables it.
	Capitalize bool
}

// DefaultConfig returns the default cleanup configuration.
func DefaultConfig() Config {
	return Config{
		InputKey:          "text",
		OutputKey:         "text",
		RawKey:            "text.raw",
		SpokenPunctuation: true,
		Capitalize:        true,
	}
}

// Stats reports what a cleanup pass changed.
type Stats struct {
	FillersRemoved     int
	PunctuationApplied int
	WordsOut           int
}

// Cleaner normalizes dictated transcripts.
type Cleaner struct {
	config  Config
	fillers map[string]bool
}

// NewCleaner creates a Cleaner. Empty keys fall back to the defaults.
func NewCleaner(config Config) (*Cleaner, error) {
	def := DefaultConfig()
	if config.InputKey == "" {
		config.InputKey = def.InputKey
	}
	if config.OutputKey == "" {
		config.OutputKey = def.OutputKey
	}
	if config.RawKey == "" {
		config.RawKey = def.RawKey
	}

	words := config.Fillers
	if words == nil {
		words = DefaultFillers
	}
	fillers := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return nil, vperrors.NewValidationError("textclean", "Fillers", config.Fillers, "filler words must not be blank")
		}
		fillers[w] = true
	}

	return &Cleaner{config: config, fillers: fillers}, nil
}

// Clean runs the cleanup passes over a transcript and returns the result
// with change counts.
func (c *Cleaner) Clean(text string) (string, Stats) {
	var stats Stats

	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		key := strings.ToLower(trimPunct(tok))

		if c.fillers[key] {
			stats.FillersRemoved++
			continue
		}

		if c.config.SpokenPunctuation {
			if i+1 < len(tokens) {
				next := strings.ToLower(trimPunct(tokens[i+1]))
				if mark, ok := doublePunct[key+" "+next]; ok {
					var applied bool
					out, applied = applyMark(out, mark)
					if applied {
						stats.PunctuationApplied++
					}
					i++
					continue
				}
			}
			if mark, ok := singlePunct[key]; ok {
				var applied bool
				out, applied = applyMark(out, mark)
				if applied {
					stats.PunctuationApplied++
				}
				continue
			}
		}

		out = append(out, tok)
	}

	if c.config.Capitalize {
		capitalize(out)
	}

	joined := join(out)
	stats.WordsOut = len(strings.Fields(joined))
	return joined, stats
}

// trimPunct strips surrounding punctuation so commands and fillers match
// even when the transcriber attached marks to them.
func trimPunct(s string) string {
	return strings.Trim(s, ".,!?;:'\"")
}

// applyMark attaches a punctuation mark to the previous word, or appends a
// line break as its own token. Marks with no preceding word, or directly
// after a break, are dropped.
func applyMark(out []string, mark string) ([]string, bool) {
	if len(out) == 0 {
		return out, false
	}
	if mark == "\n" || mark == "\n\n" {
		if isBreak(out[len(out)-1]) {
			return out, false
		}
		return append(out, mark), true
	}
	if isBreak(out[len(out)-1]) {
		return out, false
	}
	out[len(out)-1] += mark
	return out, true
}

func isBreak(tok string) bool {
	return tok == "\n" || tok == "\n\n"
}

// capitalize upcases sentence starts and first-person I in place.
func capitalize(out []string) {
	start := true
	for i, tok := range out {
		if isBreak(tok) {
			start = true
			continue
		}
		if fixed, ok := contractionsOfI[strings.ToLower(trimPunct(tok))]; ok {
			out[i] = strings.Replace(tok, trimPunct(tok), fixed, 1)
			tok = out[i]
		}
		if start {
			out[i] = upperFirst(tok)
		}
		start = endsSentence(out[i])
	}
}

// endsSentence reports whether the token closes a sentence.
func endsSentence(tok string) bool {
	trimmed := strings.TrimRight(tok, "'\")")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// upperFirst upcases the first letter of a token.
func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// join renders tokens separated by single spaces, with line break tokens
// absorbing the surrounding spaces.
func join(out []string) string {
	var b strings.Builder
	afterBreak := true
	for _, tok := range out {
		if isBreak(tok) {
			b.WriteString(tok)
			afterBreak = true
			continue
		}
		if !afterBreak {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
		afterBreak = false
	}
	return strings.TrimSpace(b.String())
}
