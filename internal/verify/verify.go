// Package verify escalates candidate pairs that survive the pre-filter to
// an LLM for duplicate confirmation.
package verify

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anthrasite/leadfactory-cli/internal/model"
)

// Verdict is the outcome of one verification call.
type Verdict struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Verifier decides whether two business records describe the same business.
// Implementations are fail-closed: any transport or parse failure yields
// (false, 0.0, "Error: ...") rather than an error, so an unreachable
// verifier can neither block the pipeline nor falsely confirm a merge.
type Verifier interface {
	VerifyDuplicates(ctx context.Context, b1, b2 *model.Business) Verdict
}

// Failed reports whether this verdict came from a failed call rather
// than a real model decision.
func (v Verdict) Failed() bool {
	return strings.HasPrefix(v.Reasoning, "Error: ")
}

// failClosed builds the conservative verdict for a failed call.
func failClosed(err error) Verdict {
	return Verdict{
		IsDuplicate: false,
		Confidence:  0.0,
		Reasoning:   "Error: " + err.Error(),
	}
}

// BuildPrompt renders a deterministic comparison prompt for two records.
// Field order is fixed so identical inputs always produce identical
// prompts, which keeps low-temperature decoding reproducible.
func BuildPrompt(b1, b2 *model.Business) string {
	var sb strings.Builder
	sb.WriteString("You are comparing two business records to determine if they are the same business.\n\n")
	writeRecord(&sb, "Business 1", b1)
	writeRecord(&sb, "Business 2", b2)
	sb.WriteString("Answer in exactly this format:\n")
	sb.WriteString("DUPLICATE: YES|NO\n")
	sb.WriteString("CONFIDENCE: 0-100\n")
	sb.WriteString("REASONING: <one sentence>\n")
	return sb.String()
}

func writeRecord(sb *strings.Builder, label string, b *model.Business) {
	fmt.Fprintf(sb, "%s:\n", label)
	fmt.Fprintf(sb, "  Name: %s\n", b.Name)
	fmt.Fprintf(sb, "  Address: %s\n", b.Address)
	fmt.Fprintf(sb, "  City: %s\n", b.City)
	fmt.Fprintf(sb, "  State: %s\n", b.State)
	fmt.Fprintf(sb, "  Zip: %s\n", b.Zip)
	fmt.Fprintf(sb, "  Phone: %s\n", b.Phone)
	fmt.Fprintf(sb, "  Website: %s\n", b.Website)
	fmt.Fprintf(sb, "  Category: %s\n\n", b.Category)
}

var (
	duplicateRe  = regexp.MustCompile(`(?im)^\s*DUPLICATE:\s*(YES|NO)`)
	confidenceRe = regexp.MustCompile(`(?im)^\s*CONFIDENCE:\s*([0-9]+(?:\.[0-9]+)?)`)
	reasoningRe  = regexp.MustCompile(`(?im)^\s*REASONING:\s*(.+)$`)
)

// ParseVerdict extracts a Verdict from model output. Parsing is tolerant:
// a missing DUPLICATE line defaults to NO, missing CONFIDENCE to 0.5,
// missing REASONING to empty. Confidence is normalized from 0-100 to 0-1.
func ParseVerdict(text string) Verdict {
	v := Verdict{Confidence: 0.5}

	if m := duplicateRe.FindStringSubmatch(text); m != nil {
		v.IsDuplicate = strings.EqualFold(m[1], "YES")
	}
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			v.Confidence = f / 100.0
			if v.Confidence > 1.0 {
				v.Confidence = 1.0
			}
			if v.Confidence < 0.0 {
				v.Confidence = 0.0
			}
		}
	}
	if m := reasoningRe.FindStringSubmatch(text); m != nil {
		v.Reasoning = strings.TrimSpace(m[1])
	}
	return v
}
