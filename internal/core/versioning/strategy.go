package versioning

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/glasskube/distr-sub001/internal/core/domain"
)

// =============================================================================
// Strategy
// =============================================================================

const (
	StrategySemver        = "semver"
	StrategyChronological = "chronological"
)

// Strategy orders application versions.
type Strategy interface {
	// Name returns the configuration name of the strategy.
	Name() string

	// IsNewer reports whether candidate is strictly newer than current.
	IsNewer(candidate, current domain.ApplicationVersion) bool

	// Compare returns -1, 0 or +1 when a is older than, as new as, or newer
	// than b.
	Compare(a, b domain.ApplicationVersion) int
}

// New returns the strategy registered under name. An empty name selects
// semver.
func New(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategySemver:
		return Semver{}, nil
	case StrategyChronological:
		return Chronological{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported version strategy %q", domain.ErrInvalidArgument, name)
	}
}

// =============================================================================
// Semver
// =============================================================================

// Semver compares version names as semantic versions in loose mode.
//
// Names that do not parse are ordered below every valid version and compared
// with each other as plain strings.
type Semver struct{}

func (Semver) Name() string { return StrategySemver }

func (s Semver) IsNewer(candidate, current domain.ApplicationVersion) bool {
	return s.Compare(candidate, current) > 0
}

func (Semver) Compare(a, b domain.ApplicationVersion) int {
	va, errA := parseLoose(a.Name)
	vb, errB := parseLoose(b.Name)

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

// parseLoose accepts surrounding whitespace and "=" or "v" prefixes on top of
// what semver.NewVersion already coerces.
func parseLoose(name string) (*semver.Version, error) {
	s := strings.TrimSpace(name)
	s = strings.TrimPrefix(s, "=")
	s = strings.TrimSpace(s)
	return semver.NewVersion(s)
}

// =============================================================================
// Chronological
// =============================================================================

// timestampLayouts are tried in order when parsing CreatedAt.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

// Chronological orders versions by creation time.
//
// Timestamps that parse are compared as instants, so differing offsets or
// fractional-second widths do not matter. Timestamps that do not parse are
// ordered below every parsed one and compared with each other as plain
// strings.
type Chronological struct{}

func (Chronological) Name() string { return StrategyChronological }

func (c Chronological) IsNewer(candidate, current domain.ApplicationVersion) bool {
	return c.Compare(candidate, current) > 0
}

func (Chronological) Compare(a, b domain.ApplicationVersion) int {
	ta, okA := parseTimestamp(a.CreatedAt)
	tb, okB := parseTimestamp(b.CreatedAt)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return strings.Compare(a.CreatedAt, b.CreatedAt)
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
