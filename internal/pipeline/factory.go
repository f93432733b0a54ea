package pipeline

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// NewPipeline returns the remote jobs client when a server URL is
// configured, otherwise the in-process manager.
func NewPipeline(logger arbor.ILogger, config *common.Config, store interfaces.DocumentStorage, scraper interfaces.Scraper) interfaces.Pipeline {
	if config != nil && config.Pipeline.ServerURL != "" {
		return NewRemoteClient(logger, config.Pipeline.ServerURL)
	}
	return NewManager(logger, config, store, scraper)
}
