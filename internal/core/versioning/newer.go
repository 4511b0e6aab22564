package versioning

import (
	"slices"

	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// NewerVersions returns the versions that are strictly newer than current
// under strategy, sorted ascending so the last element is the most recent.
//
// A nil current makes every version a candidate. The input slice is not
// modified.
func NewerVersions(versions []domain.ApplicationVersion, current *domain.ApplicationVersion, strategy Strategy) []domain.ApplicationVersion {
	result := make([]domain.ApplicationVersion, 0, len(versions))
	for _, v := range versions {
		if current == nil || strategy.IsNewer(v, *current) {
			result = append(result, v)
		}
	}

	slices.SortStableFunc(result, strategy.Compare)
	return result
}

// Latest returns the last element of an ascending sequence.
func Latest(sorted []domain.ApplicationVersion) (domain.ApplicationVersion, bool) {
	if len(sorted) == 0 {
		return domain.ApplicationVersion{}, false
	}
	return sorted[len(sorted)-1], true
}
