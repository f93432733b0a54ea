package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchDocsTool defines the search_docs tool schema
func createSearchDocsTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Search indexed documentation for a library. Resolves the requested version to the best indexed match, then returns context-expanded excerpts ranked by hybrid vector and full-text relevance."),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name, e.g. 'react'"),
		),
		mcp.WithString("version",
			mcp.Description("Version or range to search, e.g. '18.2.0', '18.x', 'latest'. Omit for the latest indexed version."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 5, max 50)"),
		),
	)
}

// createListLibrariesTool defines the list_libraries tool schema
func createListLibrariesTool() mcp.Tool {
	return mcp.NewTool("list_libraries",
		mcp.WithDescription("List all indexed libraries with their versions, indexing status and document counts."),
	)
}

// createFindVersionTool defines the find_version tool schema
func createFindVersionTool() mcp.Tool {
	return mcp.NewTool("find_version",
		mcp.WithDescription("Resolve a version request against the indexed versions of a library. Reports the best semver match and whether unversioned documents exist as a fallback."),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name"),
		),
		mcp.WithString("version",
			mcp.Description("Version or range to resolve. Omit for the latest indexed version."),
		),
	)
}

// createIndexDocsTool defines the index_docs tool schema
func createIndexDocsTool() mcp.Tool {
	return mcp.NewTool("index_docs",
		mcp.WithDescription("Queue an indexing job that scrapes documentation from a URL or local path into the store. Any active job for the same library and version is superseded."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Source to index, e.g. 'file:///path/to/docs' or a local directory path"),
		),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name to index under"),
		),
		mcp.WithString("version",
			mcp.Description("Version to index under. Omit for unversioned documents."),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of pages to index (default 1000)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum navigation depth below the source root (default 3)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the job to finish before returning (default false)"),
		),
	)
}

// createRemoveDocsTool defines the remove_docs tool schema
func createRemoveDocsTool() mcp.Tool {
	return mcp.NewTool("remove_docs",
		mcp.WithDescription("Remove all indexed documents for a library version. The library itself is removed once its last version is gone."),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name"),
		),
		mcp.WithString("version",
			mcp.Description("Version to remove. Omit to remove the unversioned documents."),
		),
	)
}

// createJobStatusTool defines the job_status tool schema
func createJobStatusTool() mcp.Tool {
	return mcp.NewTool("job_status",
		mcp.WithDescription("Show indexing jobs. With a job_id, shows that job in detail; otherwise lists jobs, optionally filtered by status."),
		mcp.WithString("job_id",
			mcp.Description("Job identifier returned by index_docs"),
		),
		mcp.WithString("status",
			mcp.Description("Filter the listing by status: queued, running, completed, failed, cancelling, cancelled"),
		),
	)
}
