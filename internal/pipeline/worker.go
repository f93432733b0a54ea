package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/scriptor/internal/models"
)

// runJob drives one job to a terminal state. Worker panics become job
// failures so a bad page can never wedge a worker slot.
func (m *Manager) runJob(job *pipelineJob) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return m.executeJob(job)
	}()
	m.settleJob(job, err)
}

// executeJob clears the version's existing chunks and runs the scrape,
// storing every page the scraper emits. Terminal status handling stays with
// settleJob; this function only reports the outcome.
func (m *Manager) executeJob(job *pipelineJob) error {
	ctx := context.Background()

	deleted, err := m.store.DeleteDocuments(ctx, job.Library, job.Version)
	if err != nil {
		return fmt.Errorf("clearing existing documents: %w", err)
	}
	if deleted > 0 {
		m.logger.Debug().
			Str("job_id", job.ID).
			Int64("deleted", deleted).
			Msg("Cleared existing documents before re-indexing")
	}

	opts := job.options
	opts.URL = job.SourceURL
	opts.Library = job.Library
	opts.Version = job.Version

	if err := m.scraper.Scrape(ctx, opts, m.composedProgress(job), job.token); err != nil {
		return err
	}
	if job.token.IsCancelled() {
		return &CancellationError{JobID: job.ID, Message: "Job cancelled"}
	}
	return nil
}

// composedProgress builds the job's progress chain: cancellation check,
// durable progress write, user callback, then document storage. The chain
// exists whether or not callbacks were registered, so progress persistence
// is unconditional.
func (m *Manager) composedProgress(job *pipelineJob) models.ProgressCallback {
	return func(progress models.ScraperProgress) error {
		if job.token.IsCancelled() {
			return &CancellationError{JobID: job.ID, Message: "Job cancelled during scraping progress"}
		}

		if err := m.store.UpdateVersionProgress(context.Background(), job.VersionID, progress.PagesScraped, progress.TotalPages); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job progress")
		}

		m.mu.Lock()
		live := progress
		live.Document = nil
		job.Progress = &live
		snapshot := job.snapshot()
		onProgress := m.callbacks.OnJobProgress
		onError := m.callbacks.OnJobError
		m.mu.Unlock()

		if onProgress != nil {
			onProgress(snapshot, progress)
		}

		if progress.Document != nil {
			if err := m.store.AddDocument(context.Background(), job.Library, job.Version, *progress.Document); err != nil {
				// A bad page is reported but never fails the whole job.
				m.logger.Warn().
					Err(err).
					Str("job_id", job.ID).
					Str("url", progress.Document.Metadata.URL).
					Msg("Failed to store scraped document")
				if onError != nil {
					onError(snapshot, err, progress.Document)
				}
			}
		}
		return nil
	}
}

// settleJob records the job's terminal state, resolves its completion
// signal and frees the worker slot.
func (m *Manager) settleJob(job *pipelineJob, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	job.FinishedAt = &now
	m.running--

	switch {
	case err == nil && !job.token.IsCancelled():
		if serr := m.setStatusLocked(job, models.JobStatusCompleted, ""); serr != nil {
			m.logger.Warn().Err(serr).Str("job_id", job.ID).Msg("Could not record job completion")
		}
		job.signal.Resolve()
		pages := 0
		if job.Progress != nil {
			pages = job.Progress.PagesScraped
		}
		m.logger.Info().
			Str("job_id", job.ID).
			Str("library", job.Library).
			Str("version", job.Version).
			Int("pages", pages).
			Msg("Job completed")

	case IsCancellation(err) || job.token.IsCancelled():
		if serr := m.setStatusLocked(job, models.JobStatusCancelled, ""); serr != nil {
			m.logger.Warn().Err(serr).Str("job_id", job.ID).Msg("Could not record job cancellation")
		}
		outcome := err
		if !IsCancellation(outcome) {
			outcome = &CancellationError{JobID: job.ID, Message: "Job cancelled"}
		}
		job.signal.Reject(outcome)
		m.logger.Info().
			Str("job_id", job.ID).
			Str("library", job.Library).
			Str("version", job.Version).
			Msg("Job cancelled")

	default:
		if serr := m.setStatusLocked(job, models.JobStatusFailed, err.Error()); serr != nil {
			m.logger.Warn().Err(serr).Str("job_id", job.ID).Msg("Could not record job failure")
		}
		job.signal.Reject(err)
		m.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("library", job.Library).
			Str("version", job.Version).
			Msg("Job failed")
	}

	m.dispatchLocked()
}
