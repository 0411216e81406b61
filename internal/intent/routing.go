package intent

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// Thresholds are the confidence bands of Route.
type Thresholds struct {
	Commit    float64
	Clarify   float64
	Secondary float64
}

// DefaultThresholds commit at 0.75, clarify from 0.45 and surface a
// secondary intent from 0.6.
var DefaultThresholds = Thresholds{Commit: 0.75, Clarify: 0.45, Secondary: 0.6}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeTopK drops repeated labels (first wins), clamps confidences and
// sorts descending. Equal confidences keep their input order.
func normalizeTopK(in []models.Candidate) []models.Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]models.Candidate, 0, len(in))
	for _, c := range in {
		if seen[c.Label] {
			continue
		}
		seen[c.Label] = true
		out = append(out, models.Candidate{Label: c.Label, Confidence: clamp(c.Confidence)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// canonicalLabel returns the PascalCase label of a known definition, or the
// label unchanged.
func canonicalLabel(label string) string {
	if def, ok := Lookup(label); ok {
		return ToPascalCase(def.Label)
	}
	return label
}

// BuildRoutedIntent normalises a native intent into a RoutedIntent. TopK is
// preferred over Top3; with neither, the native label is the only candidate.
func BuildRoutedIntent(native models.NativeIntent, slots map[string]string) models.RoutedIntent {
	source := native.TopK
	if len(source) == 0 {
		source = native.Top3
	}
	topK := normalizeTopK(source)

	primary := models.Candidate{Label: native.Label, Confidence: clamp(native.Confidence)}
	if len(topK) > 0 {
		primary = topK[0]
	} else {
		topK = []models.Candidate{primary}
	}

	var second *models.Candidate
	for i := range topK {
		if topK[i].Label != primary.Label {
			second = &topK[i]
			break
		}
	}

	tokensByLabel := make(map[string][]string, len(native.MatchedTokens))
	for _, mt := range native.MatchedTokens {
		tokensByLabel[mt.Label] = mt.Tokens
	}
	matched := make([]models.MatchedTokens, 0, len(topK))
	for _, c := range topK {
		def, _ := Lookup(c.Label)
		tokens := tokensByLabel[def.Label]
		if len(tokens) == 0 {
			tokens = tokensByLabel[c.Label]
		}
		matched = append(matched, models.MatchedTokens{
			Label:  canonicalLabel(c.Label),
			Tokens: append([]string{}, tokens...),
		})
	}

	primaryDef, _ := Lookup(primary.Label)
	if slots == nil {
		slots = map[string]string{}
	}
	routed := models.RoutedIntent{
		Label:         canonicalLabel(primary.Label),
		RawLabel:      primaryDef.Label,
		Confidence:    primary.Confidence,
		Slots:         slots,
		TopK:          topK,
		MatchedTokens: matched,
		ModelVersion:  native.ModelVersion,
		Tokens:        native.Tokens,
	}
	if second != nil {
		routed.SecondBest = canonicalLabel(second.Label)
		routed.SecondConfidence = second.Confidence
	}
	return routed
}

// Route picks commit, clarify or fallback for an intent.
func Route(in models.RoutedIntent, th Thresholds) models.RouteDecision {
	switch {
	case in.Confidence >= th.Commit:
		d := models.RouteDecision{Kind: models.DecisionCommit, Primary: in.Label}
		if ShouldConsiderSecondary(in, th) {
			d.MaybeSecondary = in.SecondBest
		}
		return d
	case in.Confidence >= th.Clarify:
		human := strings.ReplaceAll(ToSnakeCase(in.Label), "_", " ")
		return models.RouteDecision{
			Kind:     models.DecisionClarify,
			Question: fmt.Sprintf("Did you want to %s?", human),
		}
	default:
		return models.RouteDecision{Kind: models.DecisionFallback}
	}
}

// ShouldConsiderSecondary reports whether the secondary intent is strong
// enough to act on.
func ShouldConsiderSecondary(in models.RoutedIntent, th Thresholds) bool {
	return in.SecondBest != "" && in.SecondConfidence >= th.Secondary
}
