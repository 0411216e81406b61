package memory

import "github.com/iammorganparry/clive/apps/understanding/internal/models"

// DuplicateThreshold is the similarity at which a record counts as the
// same memory as the utterance.
const DuplicateThreshold = 0.85

// FindDuplicate returns the first record, in ranked order, whose score
// reaches threshold.
func FindDuplicate(records []models.ScoredMemoryRecord, threshold float64) *models.Duplicate {
	for _, r := range records {
		if r.Score >= threshold {
			return &models.Duplicate{ID: r.ID, Score: r.Score, Text: r.Text, Kind: r.Kind}
		}
	}
	return nil
}
