package chatbot

import (
	"strings"
	"unicode/utf8"

	"github.com/ashureev/providata-intake/internal/domain"
)

const (
	minNameLength        = 3
	minDescriptionLength = 10
	taxIDDigits          = 11
)

// Decision is the citizen's answer to the confirmation summary.
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionYes
	DecisionNo
)

// ValidateName accepts a full name of at least three characters.
func ValidateName(in Input) (string, bool) {
	if utf8.RuneCountInString(in.Text) < minNameLength {
		return "", false
	}
	return in.Text, true
}

// ValidateTaxID accepts eleven digits, ignoring punctuation, or a skip word.
// An empty id with ok set means the citizen chose not to give one.
func ValidateTaxID(in Input) (taxID string, ok bool) {
	if in.Is(KeywordSkip) {
		return "", true
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, in.Text)
	if len(digits) != taxIDDigits {
		return "", false
	}
	return digits, true
}

// ValidateDescription accepts a description of at least ten characters.
func ValidateDescription(in Input) (string, bool) {
	if utf8.RuneCountInString(in.Text) < minDescriptionLength {
		return "", false
	}
	return in.Text, true
}

// ValidateSelection resolves a 1-based menu number against the registry.
func ValidateSelection(in Input, options *domain.OptionRegistry) (domain.Option, bool) {
	n, ok := in.Number()
	if !ok {
		return domain.Option{}, false
	}
	return options.Pick(n)
}

// ValidateConfirmation classifies the reply to the summary.
func ValidateConfirmation(in Input) Decision {
	switch {
	case in.Is(KeywordYes):
		return DecisionYes
	case in.Is(KeywordNo):
		return DecisionNo
	}
	return DecisionUnknown
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
