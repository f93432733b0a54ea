package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ternarybob/scriptor/internal/models"
)

// UpdateVersionStatus sets the durable indexing state of a version row.
// An empty error message clears any previous one.
func (s *DocumentStorage) UpdateVersionStatus(ctx context.Context, versionID int64, status models.VersionStatus, errorMessage string) error {
	var errVal interface{}
	if errorMessage != "" {
		errVal = errorMessage
	}
	result, err := s.db.DB().ExecContext(ctx,
		`UPDATE versions SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errVal, time.Now().Unix(), versionID)
	if err != nil {
		return &StoreError{Op: "UpdateVersionStatus", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &StoreError{Op: "UpdateVersionStatus", Err: fmt.Errorf("version %d not found", versionID)}
	}
	return nil
}

// UpdateVersionProgress persists scrape progress counters on a version row.
func (s *DocumentStorage) UpdateVersionProgress(ctx context.Context, versionID int64, pages, maxPages int) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE versions SET progress_pages = ?, progress_max_pages = ?, updated_at = ? WHERE id = ?`,
		pages, maxPages, time.Now().Unix(), versionID)
	if err != nil {
		return &StoreError{Op: "UpdateVersionProgress", Err: err}
	}
	return nil
}

// GetVersionsByStatus returns version rows whose status is in the given
// set, joined with the owning library name.
func (s *DocumentStorage) GetVersionsByStatus(ctx context.Context, statuses []models.VersionStatus) ([]models.VersionRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = status
	}

	query := fmt.Sprintf(
		`SELECT v.id, v.library_id, l.name, v.name, v.status,
		        v.progress_pages, v.progress_max_pages,
		        v.error_message, v.source_url, v.scraper_options,
		        v.created_at, v.updated_at
		 FROM versions v
		 JOIN libraries l ON v.library_id = l.id
		 WHERE v.status IN (%s)
		 ORDER BY v.id`, strings.Join(placeholders, ","))

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "GetVersionsByStatus", Err: err}
	}
	defer rows.Close()

	var records []models.VersionRecord
	for rows.Next() {
		record, err := scanVersionRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "GetVersionsByStatus", Err: err}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetVersionByID returns one version row joined with its library name, or
// nil when the id does not exist.
func (s *DocumentStorage) GetVersionByID(ctx context.Context, versionID int64) (*models.VersionRecord, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT v.id, v.library_id, l.name, v.name, v.status,
		        v.progress_pages, v.progress_max_pages,
		        v.error_message, v.source_url, v.scraper_options,
		        v.created_at, v.updated_at
		 FROM versions v
		 JOIN libraries l ON v.library_id = l.id
		 WHERE v.id = ?`, versionID)

	record, err := scanVersionRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "GetVersionByID", Err: err}
	}
	return &record, nil
}

// StoreScraperOptions persists the source URL and the sanitized options on
// the version row so the version can be re-indexed reproducibly.
func (s *DocumentStorage) StoreScraperOptions(ctx context.Context, versionID int64, opts models.ScraperOptions) error {
	sourceURL := opts.URL
	stored := opts.ForStorage()
	optionsJSON, err := json.Marshal(stored)
	if err != nil {
		return &StoreError{Op: "StoreScraperOptions", Err: err}
	}

	_, err = s.db.DB().ExecContext(ctx,
		`UPDATE versions SET source_url = ?, scraper_options = ?, updated_at = ? WHERE id = ?`,
		sourceURL, string(optionsJSON), time.Now().Unix(), versionID)
	if err != nil {
		return &StoreError{Op: "StoreScraperOptions", Err: err}
	}
	return nil
}

// GetScraperOptions returns the stored scrape configuration of a version,
// or nil when none was recorded.
func (s *DocumentStorage) GetScraperOptions(ctx context.Context, versionID int64) (*models.StoredScraperOptions, error) {
	var sourceURL, optionsJSON sql.NullString
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT source_url, scraper_options FROM versions WHERE id = ?`, versionID).
		Scan(&sourceURL, &optionsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "GetScraperOptions", Err: err}
	}
	if !sourceURL.Valid || sourceURL.String == "" {
		return nil, nil
	}

	stored := &models.StoredScraperOptions{SourceURL: sourceURL.String}
	if optionsJSON.Valid && optionsJSON.String != "" {
		if err := json.Unmarshal([]byte(optionsJSON.String), &stored.Options); err != nil {
			return nil, &StoreError{Op: "GetScraperOptions", Err: fmt.Errorf("failed to parse stored options: %w", err)}
		}
	}
	return stored, nil
}

// FindVersionsBySourceURL returns version rows whose stored source URL
// matches, used to detect re-index requests for an already indexed site.
func (s *DocumentStorage) FindVersionsBySourceURL(ctx context.Context, url string) ([]models.VersionRecord, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT v.id, v.library_id, l.name, v.name, v.status,
		        v.progress_pages, v.progress_max_pages,
		        v.error_message, v.source_url, v.scraper_options,
		        v.created_at, v.updated_at
		 FROM versions v
		 JOIN libraries l ON v.library_id = l.id
		 WHERE v.source_url = ?
		 ORDER BY v.id`, url)
	if err != nil {
		return nil, &StoreError{Op: "FindVersionsBySourceURL", Err: err}
	}
	defer rows.Close()

	var records []models.VersionRecord
	for rows.Next() {
		record, err := scanVersionRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "FindVersionsBySourceURL", Err: err}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// QueryLibraryVersions returns every library's versions with document
// counts, ordered unversioned first and then by ascending semver.
func (s *DocumentStorage) QueryLibraryVersions(ctx context.Context) (map[string][]models.VersionSummary, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT l.name, v.id, v.name, v.status,
		        v.progress_pages, v.progress_max_pages, v.source_url,
		        COUNT(d.id), COUNT(DISTINCT d.url), MAX(d.indexed_at)
		 FROM libraries l
		 JOIN versions v ON v.library_id = l.id
		 LEFT JOIN documents d ON d.version_id = v.id
		 GROUP BY v.id
		 ORDER BY l.name`)
	if err != nil {
		return nil, &StoreError{Op: "QueryLibraryVersions", Err: err}
	}
	defer rows.Close()

	result := make(map[string][]models.VersionSummary)
	for rows.Next() {
		var libraryName string
		var summary models.VersionSummary
		var sourceURL sql.NullString
		var indexedAt sql.NullInt64

		if err := rows.Scan(&libraryName, &summary.VersionID, &summary.Version, &summary.Status,
			&summary.ProgressPages, &summary.ProgressMaxPages, &sourceURL,
			&summary.DocumentCount, &summary.UniqueURLCount, &indexedAt); err != nil {
			return nil, &StoreError{Op: "QueryLibraryVersions", Err: err}
		}
		if sourceURL.Valid {
			summary.SourceURL = sourceURL.String
		}
		if indexedAt.Valid {
			t := time.Unix(indexedAt.Int64, 0).UTC()
			summary.IndexedAt = &t
		}
		result[libraryName] = append(result[libraryName], summary)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "QueryLibraryVersions", Err: err}
	}

	for _, summaries := range result {
		sortVersionSummaries(summaries)
	}
	return result, nil
}

// sortVersionSummaries orders the unversioned entry first, then valid
// semver names ascending, then anything unparseable in lexical order.
func sortVersionSummaries(summaries []models.VersionSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].Version, summaries[j].Version
		if a == "" || b == "" {
			return a == "" && b != ""
		}
		va, errA := semver.NewVersion(a)
		vb, errB := semver.NewVersion(b)
		switch {
		case errA == nil && errB == nil:
			return va.LessThan(vb)
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return a < b
		}
	})
}

// scanner is the common subset of sql.Row and sql.Rows used by
// scanVersionRecord.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVersionRecord(row scanner) (models.VersionRecord, error) {
	var record models.VersionRecord
	var errorMessage, sourceURL, scraperOptions sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(&record.ID, &record.LibraryID, &record.LibraryName, &record.Name,
		&record.Status, &record.ProgressPages, &record.ProgressMaxPages,
		&errorMessage, &sourceURL, &scraperOptions, &createdAt, &updatedAt); err != nil {
		return record, err
	}
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}
	if sourceURL.Valid {
		record.SourceURL = sourceURL.String
	}
	if scraperOptions.Valid {
		record.ScraperOptions = scraperOptions.String
	}
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	record.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return record, nil
}
