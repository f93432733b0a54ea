package scraper

import "fmt"

// ScraperError reports a scrape that could not run or complete. URL is the
// requested source location.
type ScraperError struct {
	URL string
	Err error
}

func (e *ScraperError) Error() string {
	return fmt.Sprintf("scraping %s: %v", e.URL, e.Err)
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}
