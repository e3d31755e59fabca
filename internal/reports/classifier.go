package reports

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// Urgency scores by crime-type tier.
const (
	ScoreCritical = 100
	ScoreHigh     = 75
	ScoreMedium   = 50
	ScoreLow      = 30
)

// Crime-type tiers. Labels match the mobile client's taxonomy exactly.
var (
	criticalCrimes = []string{"Murder", "Homicide", "Rape", "Sexual Assault"}
	highPriority   = []string{"Robbery", "Physical Injury", "Domestic Violence", "Missing Person", "Harassment"}
	mediumPriority = []string{"Theft", "Burglary", "Break-in", "Carnapping", "Motornapping", "Threats", "Fraud", "Cybercrime"}
)

// ErrEmptyReportType indicates a report with no crime-type labels. Callers
// skip the report and keep its previous urgency score.
var ErrEmptyReportType = errors.New("reports: empty report type")

// ParseReportType decodes the report_type column, which holds either a JSON
// array of labels, a JSON string, or a bare legacy string.
func ParseReportType(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []string{single}
	}
	return []string{raw}
}

// Classify maps a report's crime-type labels to an urgency score. The highest
// matching tier wins; there is no averaging. Matching runs in two passes:
// exact matches are resolved for every label first, then labels that matched
// nothing fall back to a case-insensitive substring check in tier order. The
// fallback tolerates free-text and legacy-formatted labels.
func Classify(labels []string) (int, error) {
	clean := labels[:0:0]
	for _, label := range labels {
		if strings.TrimSpace(label) != "" {
			clean = append(clean, label)
		}
	}
	if len(clean) == 0 {
		return 0, ErrEmptyReportType
	}

	var hasCritical, hasHigh, hasMedium bool
	var unmatched []string
	for _, label := range clean {
		switch {
		case exactMatch(criticalCrimes, label):
			hasCritical = true
		case exactMatch(highPriority, label):
			hasHigh = true
		case exactMatch(mediumPriority, label):
			hasMedium = true
		default:
			unmatched = append(unmatched, label)
		}
	}

	for _, label := range unmatched {
		folded := fold(label)
		switch {
		case substringMatch(criticalCrimes, folded):
			hasCritical = true
		case substringMatch(highPriority, folded):
			hasHigh = true
		case substringMatch(mediumPriority, folded):
			hasMedium = true
		}
	}

	switch {
	case hasCritical:
		return ScoreCritical, nil
	case hasHigh:
		return ScoreHigh, nil
	case hasMedium:
		return ScoreMedium, nil
	default:
		return ScoreLow, nil
	}
}

func exactMatch(tier []string, label string) bool {
	for _, entry := range tier {
		if entry == label {
			return true
		}
	}
	return false
}

func substringMatch(tier []string, foldedLabel string) bool {
	for _, entry := range tier {
		if strings.Contains(foldedLabel, fold(entry)) {
			return true
		}
	}
	return false
}

// fold case-folds for comparison; report labels come from free-text input on
// mobile clients, so plain ASCII lowering is not enough.
func fold(s string) string {
	return cases.Fold().String(s)
}
