package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/services/documents"
)

const maxSearchLimit = 50

// handleSearchDocs implements the search_docs tool
func handleSearchDocs(docs *documents.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: library parameter is required"),
				},
			}, nil
		}
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: query parameter is required"),
				},
			}, nil
		}
		version := request.GetString("version", "")
		limit := request.GetInt("limit", 0)
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}

		// Resolve the request to an indexed version before searching. An
		// empty best match with unversioned documents falls back to those.
		if err := docs.ValidateLibraryExists(ctx, library); err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Error: %v", err)),
				},
			}, nil
		}
		match, err := docs.FindBestVersion(ctx, library, version)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Error: %v", err)),
				},
			}, nil
		}

		results, err := docs.SearchStore(ctx, library, match.BestMatch, query, limit)
		if err != nil {
			logger.Error().Err(err).Str("library", library).Msg("Search failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Search error: %v", err)),
				},
			}, nil
		}

		markdown := formatSearchResults(library, match.BestMatch, query, results)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleListLibraries implements the list_libraries tool
func handleListLibraries(docs *documents.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		libraries, err := docs.ListLibraries(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List libraries failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("List error: %v", err)),
				},
			}, nil
		}

		markdown := formatLibraries(libraries)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleFindVersion implements the find_version tool
func handleFindVersion(docs *documents.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: library parameter is required"),
				},
			}, nil
		}
		version := request.GetString("version", "")

		match, err := docs.FindBestVersion(ctx, library, version)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Error: %v", err)),
				},
			}, nil
		}

		markdown := formatVersionMatch(library, version, match)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleIndexDocs implements the index_docs tool
func handleIndexDocs(pipeline interfaces.Pipeline, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil || url == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: url parameter is required"),
				},
			}, nil
		}
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: library parameter is required"),
				},
			}, nil
		}
		version := request.GetString("version", "")

		opts := &models.ScraperOptions{
			URL:      url,
			MaxPages: request.GetInt("max_pages", 0),
			MaxDepth: request.GetInt("max_depth", 0),
		}

		jobID, err := pipeline.EnqueueJob(ctx, library, version, opts)
		if err != nil {
			logger.Error().Err(err).Str("library", library).Msg("Enqueue failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Enqueue error: %v", err)),
				},
			}, nil
		}

		if !request.GetBool("wait", false) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Queued indexing job %s for %s@%s.", jobID, library, displayVersion(version))),
				},
			}, nil
		}

		if err := pipeline.WaitForJobCompletion(ctx, jobID); err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Indexing job %s failed: %v", jobID, err)),
				},
			}, nil
		}
		job, err := pipeline.GetJob(ctx, jobID)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Indexing job %s finished but could not be read back: %v", jobID, err)),
				},
			}, nil
		}

		markdown := formatJobDetail(job)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleRemoveDocs implements the remove_docs tool
func handleRemoveDocs(docs *documents.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: library parameter is required"),
				},
			}, nil
		}
		version := request.GetString("version", "")

		report, err := docs.RemoveVersion(ctx, library, version)
		if err != nil {
			logger.Error().Err(err).Str("library", library).Msg("Remove failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Remove error: %v", err)),
				},
			}, nil
		}

		markdown := formatRemoval(library, version, report)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleJobStatus implements the job_status tool
func handleJobStatus(pipeline interfaces.Pipeline, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if jobID := request.GetString("job_id", ""); jobID != "" {
			job, err := pipeline.GetJob(ctx, jobID)
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{
						mcp.NewTextContent(fmt.Sprintf("Error: %v", err)),
					},
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(formatJobDetail(job)),
				},
			}, nil
		}

		var filter *models.JobStatus
		if raw := request.GetString("status", ""); raw != "" {
			status, ok := models.ParseJobStatus(raw)
			if !ok {
				return &mcp.CallToolResult{
					Content: []mcp.Content{
						mcp.NewTextContent(fmt.Sprintf("Error: unknown status %q", raw)),
					},
				}, nil
			}
			filter = &status
		}

		jobs, err := pipeline.GetJobs(ctx, filter)
		if err != nil {
			logger.Error().Err(err).Msg("List jobs failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("List error: %v", err)),
				},
			}, nil
		}

		markdown := formatJobList(jobs)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}
