package scraper

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// LocalScraper indexes documentation from the local filesystem. It accepts
// file:// URLs or plain paths, walks the tree in lexical order and emits one
// progress event per readable file. Web sources are out of scope; a remote
// crawler would slot in behind the same interface.
type LocalScraper struct {
	logger   arbor.ILogger
	validate *validator.Validate
}

var _ interfaces.Scraper = (*LocalScraper)(nil)

func NewLocalScraper(logger arbor.ILogger) *LocalScraper {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &LocalScraper{
		logger:   logger,
		validate: validator.New(),
	}
}

// localFile is one walk result, kept in emission order.
type localFile struct {
	path  string
	depth int
	mime  string
}

func (s *LocalScraper) Scrape(ctx context.Context, opts models.ScraperOptions, onProgress models.ProgressCallback, cancel interfaces.CancellationToken) error {
	opts = opts.WithDefaults()
	if err := s.validate.Struct(opts); err != nil {
		return &ScraperError{URL: opts.URL, Err: err}
	}

	root, err := resolveRoot(opts.URL)
	if err != nil {
		return &ScraperError{URL: opts.URL, Err: err}
	}

	files, err := s.collectFiles(root, opts)
	if err != nil {
		return &ScraperError{URL: opts.URL, Err: err}
	}
	if len(files) == 0 {
		return &ScraperError{URL: opts.URL, Err: fmt.Errorf("no indexable files under %s", root)}
	}

	s.logger.Info().
		Str("root", root).
		Int("files", len(files)).
		Str("library", opts.Library).
		Msg("Scraping local directory")

	ignoreErrors := opts.IgnoreErrors == nil || *opts.IgnoreErrors
	total := len(files)
	scraped := 0

	for _, file := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Stop between files on cooperative cancel; the caller decides what
		// an early stop means.
		if cancel != nil && cancel.IsCancelled() {
			return nil
		}

		content, err := os.ReadFile(file.path)
		if err != nil {
			if !ignoreErrors {
				return &ScraperError{URL: fileURL(file.path), Err: err}
			}
			s.logger.Warn().Err(err).Str("path", file.path).Msg("Skipping unreadable file")
			continue
		}

		scraped++
		pageURL := fileURL(file.path)
		progress := models.ScraperProgress{
			PagesScraped:    scraped,
			TotalPages:      total,
			TotalDiscovered: total,
			CurrentURL:      pageURL,
			Depth:           file.depth,
			MaxDepth:        opts.MaxDepth,
			Document: &models.Document{
				Content:     string(content),
				ContentType: file.mime,
				Metadata: models.DocumentMetadata{
					Title:    documentTitle(string(content), file.path),
					URL:      pageURL,
					MimeType: file.mime,
				},
			},
		}
		if err := onProgress(progress); err != nil {
			return err
		}
	}
	return nil
}

// collectFiles walks the root honoring depth, page count and pattern limits.
// A plain file root yields exactly that file.
func (s *LocalScraper) collectFiles(root string, opts models.ScraperOptions) ([]localFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		mime := mimeByExtension(root)
		if mime == "" {
			return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(root))
		}
		return []localFile{{path: root, depth: 0, mime: mime}}, nil
	}

	var files []localFile
	err = filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn().Err(walkErr).Str("path", p).Msg("Skipping unreadable entry")
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		depth := pathDepth(rel)

		if entry.IsDir() {
			if p != root && depth > opts.MaxDepth {
				return fs.SkipDir
			}
			if p != root && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		if depth > opts.MaxDepth {
			return nil
		}
		mime := mimeByExtension(p)
		if mime == "" {
			return nil
		}
		if !matchesPatterns(rel, opts.IncludePatterns, opts.ExcludePatterns) {
			return nil
		}

		files = append(files, localFile{path: p, depth: depth, mime: mime})
		if opts.MaxPages > 0 && len(files) >= opts.MaxPages {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// resolveRoot turns a file:// URL or plain path into an absolute filesystem
// path.
func resolveRoot(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("source url is required")
	}
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return "", err
		}
		source = u.Path
		if u.Host != "" {
			// file://relative/path parses the first segment as a host.
			source = u.Host + u.Path
		}
	} else if strings.Contains(source, "://") {
		return "", fmt.Errorf("unsupported scheme in %s: only file paths are supported", source)
	}
	return filepath.Abs(source)
}

func fileURL(p string) string {
	return "file://" + filepath.ToSlash(p)
}

// pathDepth counts directory levels below the root for a slash-relative
// path. Files directly under the root are depth 0.
func pathDepth(rel string) int {
	if rel == "." {
		return 0
	}
	return strings.Count(rel, "/")
}

// matchesPatterns applies exclude-then-include filtering. Patterns are glob
// expressions by default; /.../ delimits a regular expression. Excludes take
// precedence; no includes means everything passes.
func matchesPatterns(rel string, includes, excludes []string) bool {
	if matchAny(excludes, rel) {
		return false
	}
	if len(includes) == 0 {
		return true
	}
	return matchAny(includes, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if len(pattern) > 1 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
			re, err := regexp.Compile(pattern[1 : len(pattern)-1])
			if err == nil && re.MatchString(rel) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		// Match the base name too so *.md applies at any depth.
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

var markdownHeading = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// documentTitle prefers the first level-1 markdown heading, falling back to
// the file name without its extension.
func documentTitle(content, p string) string {
	if m := markdownHeading.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var mimeTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".rst":      "text/plain",
	".html":     "text/html",
	".htm":      "text/html",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rb":       "text/x-ruby",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".cpp":      "text/x-c++",
	".ts":       "text/x-typescript",
	".tsx":      "text/x-typescript",
	".js":       "text/javascript",
	".jsx":      "text/javascript",
	".json":     "application/json",
	".yaml":     "application/x-yaml",
	".yml":      "application/x-yaml",
	".toml":     "application/x-toml",
	".sh":       "application/x-sh",
}

func mimeByExtension(p string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(p))]
}
