// Package privacy masks personal data in user text before it leaves the
// request, and strips <private> blocks from stored memories.
package privacy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

type detector struct {
	prefix string
	re     *regexp.Regexp
	valid  func(match string) bool
}

// Detectors run in this order; later ones see earlier placeholders, which
// none of them match.
var detectors = []detector{
	{prefix: "EMAIL", re: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{prefix: "PHONE", re: regexp.MustCompile(`(?:\+?\d{1,3}[\s-]?)?(?:\(\d{2,3}\)|\d{2,3})[\s-]?\d{3}[\s-]?\d{4}`)},
	{prefix: "CARD", re: regexp.MustCompile(`\b(?:\d[\s-]*){13,19}\d\b`), valid: validCard},
	{prefix: "ADDR", re: regexp.MustCompile(`(?i)\b\d{1,5}\s+[^\n,]+(?:Street|St\.?|Avenue|Ave\.?|Road|Rd\.?|Boulevard|Blvd\.?|Lane|Ln\.?|Drive|Dr\.?|Court|Ct\.?|Place|Pl\.?)\b`)},
}

// Mask replaces emails, phone numbers, card numbers and street addresses
// with numbered placeholders such as [EMAIL_0]. Numbering restarts at zero
// for each kind on every call. The returned map is the only record of the
// original values.
func Mask(text string) models.RedactionResult {
	replacements := make(map[string]string)
	masked := text
	for _, d := range detectors {
		n := 0
		masked = d.re.ReplaceAllStringFunc(masked, func(match string) string {
			if d.valid != nil && !d.valid(match) {
				return match
			}
			placeholder := fmt.Sprintf("[%s_%d]", d.prefix, n)
			n++
			replacements[placeholder] = match
			return placeholder
		})
	}
	return models.RedactionResult{Masked: masked, ReplacementMap: replacements}
}

// Unmask restores the original values into masked text. A restored value
// may itself hold a placeholder from an earlier detector, so replacement
// repeats until nothing changes.
func Unmask(masked string, replacements map[string]string) string {
	out := masked
	for range len(replacements) + 1 {
		prev := out
		for placeholder, original := range replacements {
			out = strings.ReplaceAll(out, placeholder, original)
		}
		if out == prev {
			break
		}
	}
	return out
}

// SummarizeRedactions reports the length of each masked value without
// exposing the value itself.
func SummarizeRedactions(replacements map[string]string) map[string]int {
	out := make(map[string]int, len(replacements))
	for placeholder, original := range replacements {
		out[placeholder] = len(original)
	}
	return out
}

func validCard(match string) bool {
	digits := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 13 && digits <= 19
}
