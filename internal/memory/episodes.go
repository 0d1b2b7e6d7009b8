package memory

import (
	"context"
	"fmt"
	"sort"
)

// EpisodeIndex is the vector-similarity collection of past exchanges.
type EpisodeIndex interface {
	Add(ctx context.Context, ep Episode) error
	Search(ctx context.Context, query []float32, n int) ([]Episode, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// SQLiteEpisodes keeps episodes in the engine's database and ranks them by
// brute-force cosine similarity. Suitable for a single user's history.
type SQLiteEpisodes struct {
	engine *Engine
}

var _ EpisodeIndex = (*SQLiteEpisodes)(nil)

func NewSQLiteEpisodes(engine *Engine) *SQLiteEpisodes {
	return &SQLiteEpisodes{engine: engine}
}

func (s *SQLiteEpisodes) Add(ctx context.Context, ep Episode) error {
	blob, err := encodeEmbedding(ep.Embedding)
	if err != nil {
		return fmt.Errorf("add episode: %w", err)
	}

	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	_, err = s.engine.db.ExecContext(ctx, `
		INSERT INTO episodes (id, document, embedding, intent, timestamp, session_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ep.ID, ep.Document, blob, ep.Intent, ep.Timestamp, ep.SessionID)
	if err != nil {
		return fmt.Errorf("add episode: %w", err)
	}
	return nil
}

// Search returns up to n episodes nearest to query, nearest first. Rows whose
// embedding dimension differs from the query are skipped.
func (s *SQLiteEpisodes) Search(ctx context.Context, query []float32, n int) ([]Episode, error) {
	if n <= 0 || len(query) == 0 {
		return nil, nil
	}
	rows, err := s.engine.db.QueryContext(ctx, `
		SELECT id, document, embedding, intent, timestamp, session_id FROM episodes
	`)
	if err != nil {
		return nil, fmt.Errorf("search episodes: %w", err)
	}
	defer rows.Close()

	var hits []Episode
	for rows.Next() {
		var ep Episode
		var blob []byte
		if err := rows.Scan(&ep.ID, &ep.Document, &blob, &ep.Intent, &ep.Timestamp, &ep.SessionID); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			continue
		}
		score, ok := cosine(query, vec)
		if !ok {
			continue
		}
		ep.Score = score
		hits = append(hits, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func (s *SQLiteEpisodes) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.engine.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return n, nil
}

func (s *SQLiteEpisodes) Reset(ctx context.Context) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	if _, err := s.engine.db.ExecContext(ctx, `DELETE FROM episodes`); err != nil {
		return fmt.Errorf("reset episodes: %w", err)
	}
	return nil
}
