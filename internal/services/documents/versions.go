package documents

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/ternarybob/scriptor/internal/models"
)

const (
	suggestionThreshold = 0.4
	maxSuggestions      = 3
)

// Bare major or major.minor requests like "1" or "1.2" are widened to a
// tilde range rather than parsed as exact versions.
var plainNumericPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// FindBestVersion picks the stored version that best satisfies the request.
// Unversioned documents never participate in the comparison, but their
// presence is reported so callers can fall back to them. When no semver
// version matches and no unversioned documents exist, the error carries the
// library's full version listing.
func (s *Service) FindBestVersion(ctx context.Context, library, target string) (models.VersionMatch, error) {
	library = normalizeName(library)
	target = normalizeName(target)

	stored, err := s.store.QueryUniqueVersions(ctx, library)
	if err != nil {
		return models.VersionMatch{}, err
	}

	hasUnversioned := false
	named := make([]string, 0, len(stored))
	for _, name := range stored {
		if name == "" {
			hasUnversioned = true
			continue
		}
		named = append(named, name)
	}

	best := bestSatisfying(named, versionRange(target))
	if best == "" {
		if hasUnversioned {
			return models.VersionMatch{HasUnversioned: true}, nil
		}
		return models.VersionMatch{}, &VersionNotFoundError{
			Library:   library,
			Requested: target,
			Available: s.versionListing(ctx, library),
		}
	}
	return models.VersionMatch{BestMatch: best, HasUnversioned: hasUnversioned}, nil
}

// versionRange translates the requested version into a constraint
// expression: latest means anything, an exact version prefers itself but
// accepts anything older, a bare numeric is a tilde range, and everything
// else is taken verbatim as a range.
func versionRange(target string) string {
	switch {
	case target == "" || target == "latest":
		return "*"
	case plainNumericPattern.MatchString(target):
		return "~" + target
	default:
		if _, err := semver.StrictNewVersion(strings.TrimPrefix(target, "v")); err == nil {
			return target + " || <=" + target
		}
		return target
	}
}

// bestSatisfying returns the highest stored version satisfying the range,
// preserving the stored spelling. Unparseable names and an unparseable
// range both yield no match.
func bestSatisfying(named []string, rangeExpr string) string {
	constraint, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return ""
	}

	var best *semver.Version
	bestName := ""
	for _, name := range named {
		v, err := semver.NewVersion(name)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestName = name
		}
	}
	return bestName
}

func (s *Service) versionListing(ctx context.Context, library string) []models.VersionSummary {
	byLibrary, err := s.store.QueryLibraryVersions(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("library", library).Msg("Version listing failed")
		return nil
	}
	return byLibrary[library]
}

// suggestLibraries returns up to three known names closest to the input,
// most similar first.
func suggestLibraries(input string, known []string) []string {
	metric := metrics.NewJaroWinkler()

	type scored struct {
		name       string
		similarity float64
	}
	candidates := make([]scored, 0, len(known))
	for _, name := range known {
		similarity := strutil.Similarity(input, name, metric)
		if similarity >= suggestionThreshold {
			candidates = append(candidates, scored{name: name, similarity: similarity})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity == candidates[j].similarity {
			return candidates[i].name < candidates[j].name
		}
		return candidates[i].similarity > candidates[j].similarity
	})

	suggestions := make([]string, 0, maxSuggestions)
	for _, candidate := range candidates {
		if len(suggestions) == maxSuggestions {
			break
		}
		suggestions = append(suggestions, candidate.name)
	}
	return suggestions
}
