package arbiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentstation/contactsync/internal/match"
	"github.com/agentstation/contactsync/pkg/errors"
)

const promptHeader = `You are a contact deduplication expert. For each numbered pair below,
decide whether the two contacts represent the same person.

Consider name variations (nicknames, middle names, typos), email domain
patterns (personal vs work), phone number formats, and organization context.

Respond with ONLY a JSON array, no markdown, one element per pair:
[{"pair": 1, "decision": "match", "confidence": 0.9, "reasoning": "brief explanation"}]

"decision" must be exactly one of "match", "no_match", or "uncertain".
Include every pair exactly once.`

// buildPrompt renders a batch of uncertain pairs into one classification
// request.
func buildPrompt(pairs []match.Pair) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n")
	for i, p := range pairs {
		fmt.Fprintf(&b, "\nPair %d:\n", i+1)
		writeContact(&b, "Contact A", p.A.Name(), p.A.Emails, p.A.Phones, p.A.Organizations)
		writeContact(&b, "Contact B", p.B.Name(), p.B.Emails, p.B.Phones, p.B.Organizations)
	}
	return b.String()
}

func writeContact(b *strings.Builder, label, name string, emails, phones, orgs []string) {
	fmt.Fprintf(b, "%s:\n", label)
	fmt.Fprintf(b, "- Name: %s\n", orNone(name))
	fmt.Fprintf(b, "- Emails: %s\n", orNone(strings.Join(emails, ", ")))
	fmt.Fprintf(b, "- Phones: %s\n", orNone(strings.Join(phones, ", ")))
	fmt.Fprintf(b, "- Organizations: %s\n", orNone(strings.Join(orgs, ", ")))
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// verdict is the wire shape of one element of the arbiter's response.
type verdict struct {
	Pair       int     `json:"pair"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Wire decision values.
const (
	decisionMatch     = "match"
	decisionNoMatch   = "no_match"
	decisionUncertain = "uncertain"
)

// parseResponse validates the arbiter's response against the declared
// schema and returns verdicts indexed by zero-based pair position. Elements
// that are out of range, duplicated, or malformed are dropped; the caller
// treats missing indexes as unmatched.
func parseResponse(raw string, pairCount int) (map[int]verdict, error) {
	text := strings.TrimSpace(raw)
	// Some models wrap JSON in a code fence despite instructions.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var raws []verdict
	if err := json.Unmarshal([]byte(text), &raws); err != nil {
		return nil, errors.NewValidationError("arbiter_response", text, "response is not a JSON array")
	}

	out := make(map[int]verdict, len(raws))
	for _, v := range raws {
		idx := v.Pair - 1
		if idx < 0 || idx >= pairCount {
			continue
		}
		if _, dup := out[idx]; dup {
			continue
		}
		switch v.Decision {
		case decisionMatch, decisionNoMatch, decisionUncertain:
		default:
			continue
		}
		if v.Confidence < 0 || v.Confidence > 1 {
			continue
		}
		out[idx] = v
	}
	return out, nil
}

// classOf maps a wire decision to an engine classification. Anything but a
// positive match is conservative: the engine never auto-merges without
// confirmation.
func classOf(decision string) match.Class {
	if decision == decisionMatch {
		return match.ClassMatched
	}
	return match.ClassUnmatched
}
