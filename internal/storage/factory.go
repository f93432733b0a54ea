package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/storage/sqlite"
)

// NewDocumentStorage opens the SQLite document store at the resolved store
// path and wires the embedder and splitter into it. The embedder may be nil,
// in which case chunks are stored without vectors and search is FTS-only.
func NewDocumentStorage(logger arbor.ILogger, config *common.Config, embedder interfaces.EmbeddingProvider, splitter interfaces.ContentSplitter) (interfaces.DocumentStorage, error) {
	storePath, err := common.ResolveStorePath(config)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("store_path", storePath).
		Str("installation_id", common.EnsureInstallationID(storePath)).
		Msg("Store directory resolved")

	db, err := sqlite.NewSQLiteDB(logger, common.DatabasePath(storePath), &config.Storage)
	if err != nil {
		return nil, err
	}

	return sqlite.NewDocumentStorage(db, embedder, splitter, config, logger), nil
}
