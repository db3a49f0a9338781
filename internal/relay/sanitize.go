package relay

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/evhart/bivouac/pkg/domain"
)

const (
	// MaxIdentLen caps identifiers (actor refs, slot IDs).
	MaxIdentLen = 64
	// MaxTextLen caps free-text fields (notes) in runes.
	MaxTextLen = 4000
)

var (
	ErrUnknownOp     = errors.New("unknown op")
	ErrBadIdentifier = errors.New("malformed identifier")
	ErrTextTooLarge  = errors.New("text exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("text contains invalid UTF-8 sequences")
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidIdent reports whether s is an acceptable identifier: non-empty,
// alphanumeric plus dash/underscore, within the length limit.
func ValidIdent(s string) bool {
	return s != "" && len(s) <= MaxIdentLen && identPattern.MatchString(s)
}

// CleanText normalizes a free-text field: enforces the size cap, validates
// UTF-8, and strips control characters other than newline and tab. This
// keeps hostile input out of documents and logs.
func CleanText(input string) (string, error) {
	if utf8.RuneCountInString(input) > MaxTextLen {
		// Reject rather than truncate so the client sees deterministic
		// non-application instead of silently altered text.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTextTooLarge, utf8.RuneCountInString(input), MaxTextLen)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t'
}

// Sanitize validates a command at the bus boundary, before the relay's
// policy machinery ever sees it. It rewrites free-text payload fields with
// their cleaned form.
func Sanitize(cmd *domain.Command) error {
	if _, ok := domain.PolicyFor(cmd.Kind); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Kind)
	}
	if !ValidIdent(string(cmd.Actor)) {
		return fmt.Errorf("%w: actorRef %q", ErrBadIdentifier, cmd.Actor)
	}
	if !ValidIdent(string(cmd.From)) {
		return fmt.Errorf("%w: fromId %q", ErrBadIdentifier, cmd.From)
	}
	if slot := cmd.PayloadString("slotId"); slot != "" && !ValidIdent(slot) {
		return fmt.Errorf("%w: slotId %q", ErrBadIdentifier, slot)
	}
	for _, key := range []string{"notes", "note"} {
		raw, ok := cmd.Payload[key].(string)
		if !ok {
			continue
		}
		cleaned, err := CleanText(raw)
		if err != nil {
			return err
		}
		cmd.Payload[key] = cleaned
	}
	return nil
}
