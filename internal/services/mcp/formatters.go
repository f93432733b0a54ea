package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/scriptor/internal/models"
)

// formatSearchResults formats hybrid search hits as markdown
func formatSearchResults(library, version, query string, results []models.StoreSearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" in %s@%s (%d results)\n\n",
		query, library, displayVersion(version), len(results)))

	if len(results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, result := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, result.URL))
		sb.WriteString(fmt.Sprintf("**Score:** %.4f\n\n", result.Score))
		sb.WriteString(result.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatLibraries formats the library listing as markdown
func formatLibraries(libraries []models.LibrarySummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Indexed Libraries (%d)\n\n", len(libraries)))

	if len(libraries) == 0 {
		sb.WriteString("No libraries indexed.\n")
		return sb.String()
	}

	for _, library := range libraries {
		sb.WriteString(fmt.Sprintf("### %s\n", library.Name))
		for _, version := range library.Versions {
			sb.WriteString(fmt.Sprintf("- **%s**: %s, %d chunks across %d pages\n",
				displayVersion(version.Version), version.Status,
				version.DocumentCount, version.UniqueURLCount))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatVersionMatch formats a version resolution as markdown
func formatVersionMatch(library, requested string, match models.VersionMatch) string {
	if requested == "" {
		requested = "latest"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Version Match for %s@%s\n\n", library, requested))
	if match.BestMatch != "" {
		sb.WriteString(fmt.Sprintf("**Best match:** %s\n", match.BestMatch))
	} else {
		sb.WriteString("**Best match:** none\n")
	}
	if match.HasUnversioned {
		sb.WriteString("**Unversioned documents:** available\n")
	} else {
		sb.WriteString("**Unversioned documents:** none\n")
	}

	return sb.String()
}

// formatJobDetail formats a single job as markdown
func formatJobDetail(job *models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Job %s\n\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Library:** %s@%s\n", job.Library, displayVersion(job.Version)))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	if job.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("**Source:** %s\n", job.SourceURL))
	}
	if job.Progress != nil {
		sb.WriteString(fmt.Sprintf("**Progress:** %d/%d pages\n",
			job.Progress.PagesScraped, job.Progress.TotalPages))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", job.Error))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", job.CreatedAt.Format(time.RFC3339)))
	if job.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", job.StartedAt.Format(time.RFC3339)))
	}
	if job.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("**Finished:** %s\n", job.FinishedAt.Format(time.RFC3339)))
	}

	return sb.String()
}

// formatJobList formats the job listing as markdown
func formatJobList(jobs []*models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Indexing Jobs (%d)\n\n", len(jobs)))

	if len(jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	for i, job := range jobs {
		sb.WriteString(fmt.Sprintf("%d. **%s@%s** (%s)\n", i+1,
			job.Library, displayVersion(job.Version), job.Status))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", job.ID))
		if job.Progress != nil {
			sb.WriteString(fmt.Sprintf("   Progress: %d/%d pages\n",
				job.Progress.PagesScraped, job.Progress.TotalPages))
		}
		if job.Error != "" {
			sb.WriteString(fmt.Sprintf("   Error: %s\n", job.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatRemoval formats a removal report as markdown
func formatRemoval(library, version string, report models.RemovalReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Removed %s@%s\n\n", library, displayVersion(version)))
	sb.WriteString(fmt.Sprintf("**Documents deleted:** %d\n", report.DocumentsDeleted))
	if report.LibraryDeleted {
		sb.WriteString("**Library deleted:** yes (last version removed)\n")
	}

	return sb.String()
}

func displayVersion(version string) string {
	if version == "" {
		return "unversioned"
	}
	return version
}
