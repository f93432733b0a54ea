package models

import "time"

// VersionStatus is the durable indexing state persisted on a version row.
type VersionStatus string

const (
	VersionStatusNotIndexed VersionStatus = "not_indexed"
	VersionStatusQueued     VersionStatus = "queued"
	VersionStatusRunning    VersionStatus = "running"
	VersionStatusUpdating   VersionStatus = "updating"
	VersionStatusCompleted  VersionStatus = "completed"
	VersionStatusFailed     VersionStatus = "failed"
	VersionStatusCancelled  VersionStatus = "cancelled"
)

// VersionRecord is a full version row, including the owning library's name
// so recovery can rebuild jobs without extra lookups.
type VersionRecord struct {
	ID               int64         `json:"id"`
	LibraryID        int64         `json:"libraryId"`
	LibraryName      string        `json:"libraryName"`
	Name             string        `json:"name"`
	Status           VersionStatus `json:"status"`
	ProgressPages    int           `json:"progressPages"`
	ProgressMaxPages int           `json:"progressMaxPages"`
	ErrorMessage     string        `json:"errorMessage,omitempty"`
	SourceURL        string        `json:"sourceUrl,omitempty"`
	ScraperOptions   string        `json:"-"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// VersionSummary is one version's listing entry with document counts.
type VersionSummary struct {
	Version          string        `json:"version"`
	VersionID        int64         `json:"versionId"`
	Status           VersionStatus `json:"status"`
	ProgressPages    int           `json:"progressPages"`
	ProgressMaxPages int           `json:"progressMaxPages"`
	SourceURL        string        `json:"sourceUrl,omitempty"`
	DocumentCount    int64         `json:"documentCount"`
	UniqueURLCount   int64         `json:"uniqueUrlCount"`
	IndexedAt        *time.Time    `json:"indexedAt,omitempty"`
}

// LibrarySummary lists a library with its indexed versions, unversioned
// first and the rest in ascending semver order.
type LibrarySummary struct {
	Name     string           `json:"name"`
	Versions []VersionSummary `json:"versions"`
}

// VersionMatch is the result of best-version selection. BestMatch is empty
// when no semver version satisfied the request; HasUnversioned reports
// whether unversioned documents exist as a fallback.
type VersionMatch struct {
	BestMatch      string `json:"bestMatch"`
	HasUnversioned bool   `json:"hasUnversioned"`
}

// RemovalReport describes what a version removal deleted.
type RemovalReport struct {
	DocumentsDeleted int64 `json:"documentsDeleted"`
	VersionDeleted   bool  `json:"versionDeleted"`
	LibraryDeleted   bool  `json:"libraryDeleted"`
}
