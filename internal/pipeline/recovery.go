package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/scriptor/internal/models"
)

// recoverPendingJobs requeues work a previous process left behind. Versions
// stuck at running were interrupted mid-scrape and are reset to queued; then
// every queued version is materialized as a fresh job from its stored scrape
// configuration. A recovered job starts over from scratch because the worker
// clears the version's documents before scraping.
func (m *Manager) recoverPendingJobs(ctx context.Context) error {
	interrupted, err := m.store.GetVersionsByStatus(ctx, []models.VersionStatus{models.VersionStatusRunning})
	if err != nil {
		return err
	}
	for i := range interrupted {
		record := &interrupted[i]
		if err := m.store.UpdateVersionStatus(ctx, record.ID, models.VersionStatusQueued, ""); err != nil {
			m.logger.Warn().
				Err(err).
				Int64("version_id", record.ID).
				Str("library", record.LibraryName).
				Msg("Failed to requeue interrupted version")
		}
	}

	queued, err := m.store.GetVersionsByStatus(ctx, []models.VersionStatus{models.VersionStatusQueued})
	if err != nil {
		return err
	}

	recovered := 0
	m.mu.Lock()
	for i := range queued {
		record := &queued[i]
		if m.findActiveLocked(record.LibraryName, record.Name) != nil {
			continue
		}

		opts := models.ScraperOptions{}
		if record.ScraperOptions != "" {
			if err := json.Unmarshal([]byte(record.ScraperOptions), &opts); err != nil {
				m.logger.Warn().
					Err(err).
					Int64("version_id", record.ID).
					Msg("Ignoring invalid stored scraper options")
				opts = models.ScraperOptions{}
			}
		}
		opts = opts.WithDefaults()
		opts.URL = record.SourceURL
		opts.Library = record.LibraryName
		opts.Version = record.Name

		job := &pipelineJob{
			Job: models.Job{
				ID:             uuid.New().String(),
				Library:        record.LibraryName,
				Version:        record.Name,
				Status:         models.JobStatusQueued,
				SourceURL:      record.SourceURL,
				ScraperOptions: &opts,
				CreatedAt:      time.Now(),
				VersionID:      record.ID,
			},
			options: opts,
			token:   NewCancellationToken(),
			signal:  newCompletionSignal(),
		}
		m.jobs[job.ID] = job
		m.queue = append(m.queue, job.ID)
		recovered++

		m.logger.Info().
			Str("job_id", job.ID).
			Str("library", record.LibraryName).
			Str("version", record.Name).
			Str("url", record.SourceURL).
			Msg("Recovered pending job")
	}
	m.mu.Unlock()

	if recovered > 0 {
		m.logger.Info().Int("count", recovered).Msg("Recovered pending jobs from previous run")
	}
	return nil
}
