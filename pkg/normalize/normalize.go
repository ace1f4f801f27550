// Package normalize produces canonical matching keys from raw contact text.
// Keys are derived the same way on both accounts so that the same logical
// value (a name typed two ways, an email with odd casing, a phone with
// punctuation) collapses to one string.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options controls key derivation. The zero value lowercases, strips accents
// and punctuation, and removes spaces.
type Options struct {
	// SortWords splits on spaces, sorts the tokens, and concatenates them
	// with no separator. "First Last" and "Last, First" produce the same key.
	SortWords bool

	// AllowEmailChars preserves '@' when punctuation is stripped.
	AllowEmailChars bool

	// KeepSpaces leaves single spaces between words instead of removing
	// them. Ignored when SortWords is set.
	KeepSpaces bool

	// KeepPunctuation skips the punctuation filter entirely; only Unicode
	// decomposition, lowercasing, and whitespace collapsing are applied.
	KeepPunctuation bool
}

// String normalizes text into a matching key. Empty input yields "".
//
// The pipeline is: NFD decomposition, combining-mark removal, lowercasing,
// optional punctuation filtering, whitespace collapsing, then word sorting
// or space removal per Options.
func String(text string, opts Options) string {
	if text == "" {
		return ""
	}

	decomposed := norm.NFD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingSpace := false
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining mark (accent)
		}
		r = unicode.ToLower(r)
		if unicode.IsSpace(r) {
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if !opts.KeepPunctuation && !allowedRune(r, opts.AllowEmailChars) {
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if opts.SortWords {
		words := strings.Split(out, " ")
		sort.Strings(words)
		return strings.Join(words, "")
	}
	if !opts.KeepSpaces {
		return strings.ReplaceAll(out, " ", "")
	}
	return out
}

// Name returns the key for person names: accent-insensitive, word order
// insensitive.
func Name(text string) string {
	return String(text, Options{SortWords: true})
}

// Email returns the key for email addresses, preserving '@'.
func Email(text string) string {
	return String(text, Options{AllowEmailChars: true})
}

// Phone returns the digits-only key for a phone number. An 11-digit number
// with a leading country code 1 is reduced to its 10-digit national form.
func Phone(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

func allowedRune(r rune, allowEmail bool) bool {
	if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
		return true
	}
	return allowEmail && r == '@'
}
