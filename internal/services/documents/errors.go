package documents

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scriptor/internal/models"
)

// LibraryNotFoundError reports an unknown library, with up to three closest
// known names to aid correction.
type LibraryNotFoundError struct {
	Library     string
	Suggestions []string
}

func (e *LibraryNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("library %s not found", e.Library)
	}
	return fmt.Sprintf("library %s not found, did you mean: %s", e.Library, strings.Join(e.Suggestions, ", "))
}

// VersionActiveError refuses removal of a version that an indexing job is
// still writing to.
type VersionActiveError struct {
	Library string
	Version string
	Status  models.VersionStatus
}

func (e *VersionActiveError) Error() string {
	version := e.Version
	if version == "" {
		version = "unversioned"
	}
	return fmt.Sprintf("cannot remove %s@%s while indexing is %s, cancel the job first", e.Library, version, e.Status)
}

// VersionNotFoundError reports that no stored version satisfies a request.
// Available carries the library's detailed version listing so callers can
// present valid choices.
type VersionNotFoundError struct {
	Library   string
	Requested string
	Available []models.VersionSummary
}

func (e *VersionNotFoundError) Error() string {
	requested := e.Requested
	if requested == "" {
		requested = "latest"
	}
	names := make([]string, 0, len(e.Available))
	for _, v := range e.Available {
		if v.Version == "" {
			names = append(names, "unversioned")
		} else {
			names = append(names, v.Version)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("version %s of library %s not found: no versions indexed", requested, e.Library)
	}
	return fmt.Sprintf("version %s of library %s not found, available: %s", requested, e.Library, strings.Join(names, ", "))
}
