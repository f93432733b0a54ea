package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
)

// rrfK dampens the influence of top ranks when fusing result lists.
const rrfK = 60

// FindByContent runs hybrid search over one (library, version): vector
// similarity and BM25 full-text ranks fused by reciprocal rank fusion.
// Without an embedder the full-text ranking stands alone.
func (s *DocumentStorage) FindByContent(ctx context.Context, library, version, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = s.config.Search.DefaultLimit
	}
	if limit <= 0 {
		limit = common.DefaultSearchLimit
	}

	versionID, ok, err := s.lookupVersionID(ctx, library, version)
	if err != nil {
		return nil, &StoreError{Op: "FindByContent", Err: err}
	}
	if !ok {
		return nil, nil
	}

	ftsRanks, err := s.ftsRanks(ctx, versionID, query, limit)
	if err != nil {
		return nil, err
	}

	vecRanks := make(map[int64]int)
	if s.embedder != nil {
		queryVector, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, &StoreError{Op: "FindByContent", Err: fmt.Errorf("failed to embed query: %w", err)}
		}
		storeDim := s.config.Storage.VectorDimension
		if storeDim <= 0 {
			storeDim = common.DefaultVectorDimension
		}
		if len(queryVector) > storeDim {
			return nil, &DimensionError{
				Model:          s.embedder.Model(),
				ModelDimension: len(queryVector),
				StoreDimension: storeDim,
			}
		}
		vecRanks, err = s.vectorRanks(ctx, versionID, padEmbedding(queryVector, storeDim), limit)
		if err != nil {
			return nil, err
		}
	}

	fused := fuseRanks(vecRanks, ftsRanks, limit)
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(fused))
	for i, f := range fused {
		ids[i] = f.id
	}
	chunks, err := s.loadChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(fused))
	for _, f := range fused {
		chunk, ok := chunks[f.id]
		if !ok {
			continue
		}
		results = append(results, models.SearchResult{
			StoredDocument: chunk,
			Score:          f.score,
			VecRank:        vecRanks[f.id],
			FTSRank:        ftsRanks[f.id],
		})
	}
	return results, nil
}

// ftsRanks returns the 1-based BM25 rank per chunk id, title weighted above
// url and content.
func (s *DocumentStorage) ftsRanks(ctx context.Context, versionID int64, query string, limit int) (map[int64]int, error) {
	match := quoteFTSQuery(query)
	if match == "" {
		return map[int64]int{}, nil
	}

	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT rowid FROM documents_fts
		 WHERE documents_fts MATCH ?
		   AND rowid IN (SELECT id FROM documents WHERE version_id = ?)
		 ORDER BY bm25(documents_fts, 10.0, 1.0, 1.0)
		 LIMIT ?`,
		match, versionID, limit)
	if err != nil {
		return nil, &StoreError{Op: "FindByContent", Err: fmt.Errorf("full-text query failed: %w", err)}
	}
	defer rows.Close()

	ranks := make(map[int64]int)
	rank := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &StoreError{Op: "FindByContent", Err: err}
		}
		rank++
		ranks[id] = rank
	}
	return ranks, rows.Err()
}

// quoteFTSQuery quotes each whitespace-separated term so FTS5 operators
// and punctuation in user queries are matched literally, with implicit AND
// between terms.
func quoteFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// vectorRanks computes cosine similarity between the query vector and every
// embedded chunk of the version, returning the 1-based rank of the top ids.
// The scan is in-process; version corpora are small enough that a linear
// pass beats maintaining a separate index.
func (s *DocumentStorage) vectorRanks(ctx context.Context, versionID int64, queryVector []float32, limit int) (map[int64]int, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, embedding FROM documents
		 WHERE version_id = ? AND embedding IS NOT NULL`, versionID)
	if err != nil {
		return nil, &StoreError{Op: "FindByContent", Err: err}
	}
	defer rows.Close()

	type scored struct {
		id         int64
		similarity float64
	}
	var candidates []scored
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, &StoreError{Op: "FindByContent", Err: err}
		}
		vector, err := decodeEmbedding(blob)
		if err != nil {
			s.logger.Warn().Int64("id", id).Err(err).Msg("Skipping chunk with malformed embedding")
			continue
		}
		candidates = append(candidates, scored{id: id, similarity: cosineSimilarity(queryVector, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "FindByContent", Err: err}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].id < candidates[j].id
	})

	ranks := make(map[int64]int)
	for i, c := range candidates {
		if i >= limit {
			break
		}
		ranks[c.id] = i + 1
	}
	return ranks, nil
}

type fusedResult struct {
	id    int64
	score float64
}

// fuseRanks merges the two rank lists with reciprocal rank fusion:
// score(d) = sum over lists of 1/(k + rank(d)).
func fuseRanks(vecRanks, ftsRanks map[int64]int, limit int) []fusedResult {
	scores := make(map[int64]float64)
	for id, rank := range vecRanks {
		scores[id] += 1.0 / float64(rrfK+rank)
	}
	for id, rank := range ftsRanks {
		scores[id] += 1.0 / float64(rrfK+rank)
	}

	fused := make([]fusedResult, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, fusedResult{id: id, score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].id < fused[j].id
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// loadChunks loads full chunk rows for a set of ids.
func (s *DocumentStorage) loadChunks(ctx context.Context, ids []int64) (map[int64]models.StoredDocument, error) {
	if len(ids) == 0 {
		return map[int64]models.StoredDocument{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.DB().QueryContext(ctx, fmt.Sprintf(
		`SELECT id, url, content, metadata, sort_order, indexed_at
		 FROM documents WHERE id IN (%s)`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, &StoreError{Op: "FindByContent", Err: err}
	}
	defer rows.Close()

	chunks := make(map[int64]models.StoredDocument, len(ids))
	for rows.Next() {
		chunk, err := scanStoredDocument(rows)
		if err != nil {
			return nil, &StoreError{Op: "FindByContent", Err: err}
		}
		chunks[chunk.ID] = chunk
	}
	return chunks, rows.Err()
}

func scanStoredDocument(row scanner) (models.StoredDocument, error) {
	var chunk models.StoredDocument
	var metadataJSON string
	var indexedAt int64
	if err := row.Scan(&chunk.ID, &chunk.URL, &chunk.Content, &metadataJSON, &chunk.SortOrder, &indexedAt); err != nil {
		return chunk, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return chunk, fmt.Errorf("failed to parse metadata of chunk %d: %w", chunk.ID, err)
	}
	chunk.IndexedAt = timeFromUnix(indexedAt)
	return chunk, nil
}
