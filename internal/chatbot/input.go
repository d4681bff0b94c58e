package chatbot

import (
	"strconv"
	"strings"

	"github.com/ashureev/providata-intake/internal/shared"
)

// Keyword is a set of reserved words an input can match.
type Keyword uint8

const (
	// KeywordReset restarts the conversation from any state.
	KeywordReset Keyword = 1 << iota
	// KeywordYes confirms the summary.
	KeywordYes
	// KeywordNo cancels the summary.
	KeywordNo
	// KeywordSkip leaves the optional tax id empty.
	KeywordSkip
)

// keywords maps folded text to the keyword set it belongs to.
var keywords = map[string]Keyword{
	"reset":     KeywordReset,
	"reiniciar": KeywordReset,
	"menu":      KeywordReset,
	"start":     KeywordReset,
	"inicio":    KeywordReset,

	"sim":       KeywordYes,
	"s":         KeywordYes,
	"confirmar": KeywordYes,
	"1":         KeywordYes,

	"nao":      KeywordNo | KeywordSkip,
	"n":        KeywordNo,
	"cancelar": KeywordNo,
	"2":        KeywordNo,

	"pular": KeywordSkip,
	"0":     KeywordSkip,
}

// Input is an inbound message parsed once before dispatch.
type Input struct {
	// Text is the message with surrounding whitespace removed.
	Text string
	// Folded is Text lower-cased with diacritics stripped.
	Folded string

	keywords  Keyword
	number    int
	hasNumber bool
}

// ParseInput normalizes raw message text.
func ParseInput(raw string) Input {
	text := strings.TrimSpace(raw)
	folded := shared.Fold(text)

	in := Input{
		Text:     text,
		Folded:   folded,
		keywords: keywords[folded],
	}
	if n, err := strconv.Atoi(text); err == nil {
		in.number = n
		in.hasNumber = true
	}
	return in
}

// Is reports whether the input matches keyword k.
func (in Input) Is(k Keyword) bool {
	return in.keywords&k != 0
}

// Number returns the integer value of the input, if it is one.
func (in Input) Number() (int, bool) {
	return in.number, in.hasNumber
}
