package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/fingerprint"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteVecStore is the local-only vector-store backend, opened when the
// configured provider is neither "milvus" (the default) nor "zilliz": one
// SQLite database file holding a vec0 virtual table per collection plus a
// sparse-term and metadata table, and a dedicated table for completion
// markers.
type SQLiteVecStore struct {
	conn *sql.DB
	mu   sync.Mutex
}

// OpenSQLiteVec opens or creates the database at path.
func OpenSQLiteVec(path string) (*SQLiteVecStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.NewDatabaseError("Cannot create vector store directory",
			fmt.Sprintf("Failed to create %s", dir), "Check directory permissions", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errs.NewDatabaseError("Cannot open vector store", "sqlite3 open failed", "Check file permissions", err)
	}

	var vecVersion string
	if err := conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		conn.Close()
		return nil, errs.NewDatabaseError("sqlite-vec extension unavailable",
			"The sqlite-vec CGO extension failed to load", "Rebuild with CGO_ENABLED=1", err)
	}

	store := &SQLiteVecStore{conn: conn}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteVecStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS satori_collections (
			name TEXT PRIMARY KEY,
			codebase_path TEXT,
			dimension INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS satori_markers (
			collection_name TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		);
	`)
	if err != nil {
		return errs.NewDatabaseError("Cannot initialize vector store schema", "Migration failed", "", err)
	}
	return nil
}

func chunkTable(collectionName string) string  { return "chunks_" + sanitize(collectionName) }
func vecTable(collectionName string) string    { return "vec_" + sanitize(collectionName) }
func sparseTable(collectionName string) string { return "sparse_" + sanitize(collectionName) }

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
}

func (s *SQLiteVecStore) EnsureCollection(ctx context.Context, collectionName string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, vec := chunkTable(collectionName), vecTable(collectionName)
	_, err := s.conn.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			start_line INTEGER,
			end_line INTEGER,
			text TEXT,
			scope TEXT,
			language TEXT,
			sparse_terms TEXT
		);
	`, chunks))
	if err != nil {
		return errs.NewDatabaseError("Cannot create collection", collectionName, "", err)
	}

	_, err = s.conn.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d]);`, vec, dimension))
	if err != nil {
		return errs.NewDatabaseError("Cannot create vector index", collectionName, "", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO satori_collections (name, dimension, created_at) VALUES (?, ?, ?)`,
		collectionName, dimension, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteVecStore) DropCollection(ctx context.Context, collectionName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.collectionExistsLocked(ctx, collectionName)
	if err != nil || !exists {
		return false, err
	}

	for _, tbl := range []string{chunkTable(collectionName), vecTable(collectionName)} {
		if _, err := s.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+tbl); err != nil {
			return false, errs.NewDatabaseError("Cannot drop collection", collectionName, "", err)
		}
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM satori_collections WHERE name = ?`, collectionName); err != nil {
		return false, err
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM satori_markers WHERE collection_name = ?`, collectionName); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteVecStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionExistsLocked(ctx, collectionName)
}

func (s *SQLiteVecStore) collectionExistsLocked(ctx context.Context, collectionName string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM satori_collections WHERE name = ?`, collectionName).Scan(&n)
	if err != nil {
		return false, errs.NewDatabaseError("Cannot query collections", "", "", err)
	}
	return n > 0, nil
}

func (s *SQLiteVecStore) UpsertChunks(ctx context.Context, collectionName string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunksTbl, vecTbl := chunkTable(collectionName), vecTable(collectionName)
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("Cannot begin transaction", "", "", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		sparse, _ := json.Marshal(c.SparseTerms)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, path, start_line, end_line, text, scope, language, sparse_terms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				path=excluded.path, start_line=excluded.start_line, end_line=excluded.end_line,
				text=excluded.text, scope=excluded.scope, language=excluded.language, sparse_terms=excluded.sparse_terms
		`, chunksTbl), c.ID, c.Path, c.StartLine, c.EndLine, c.Text, c.Scope, c.Language, string(sparse)); err != nil {
			return errs.NewDatabaseError("Cannot upsert chunk", c.Path, "", err)
		}

		vecBytes, err := sqlite_vec.SerializeFloat32(c.Vector)
		if err != nil {
			return errs.NewInternalError("Cannot serialize embedding vector", c.Path, "", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT OR REPLACE INTO %s (rowid, embedding) VALUES ((SELECT rowid FROM %s WHERE id = ?), ?)`,
			vecTbl, chunksTbl), c.ID, vecBytes); err != nil {
			return errs.NewDatabaseError("Cannot index embedding vector", c.Path, "", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("Cannot commit chunk upsert", "", "", err)
	}
	return nil
}

func (s *SQLiteVecStore) DeleteChunksByPath(ctx context.Context, collectionName string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	chunksTbl, vecTbl := chunkTable(collectionName), vecTable(collectionName)
	placeholders := make([]string, len(paths))
	args := make([]any, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s WHERE path IN (%s))`, vecTbl, chunksTbl, inClause),
		args...); err != nil {
		return errs.NewDatabaseError("Cannot delete chunk vectors", "", "", err)
	}
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE path IN (%s)`, chunksTbl, inClause), args...); err != nil {
		return errs.NewDatabaseError("Cannot delete chunks", "", "", err)
	}
	return nil
}

func (s *SQLiteVecStore) Search(ctx context.Context, collectionName string, q SearchQuery) ([]SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunksTbl, vecTbl := chunkTable(collectionName), vecTable(collectionName)
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}
	fetchK := topK * 5 // overfetch for scope/path weighting and diversity capping downstream

	vecBytes, err := sqlite_vec.SerializeFloat32(q.DenseVector)
	if err != nil {
		return nil, errs.NewInternalError("Cannot serialize query vector", "", "", err)
	}

	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT v.distance, c.id, c.path, c.start_line, c.end_line, c.text, c.scope, c.language, c.sparse_terms
		FROM %s v
		JOIN %s c ON c.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, vecTbl, chunksTbl), vecBytes, fetchK)
	if err != nil {
		return nil, errs.NewDatabaseError("Vector search failed", collectionName, "", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var distance float64
		var c Chunk
		var sparseJSON string
		if err := rows.Scan(&distance, &c.ID, &c.Path, &c.StartLine, &c.EndLine, &c.Text, &c.Scope, &c.Language, &sparseJSON); err != nil {
			return nil, errs.NewDatabaseError("Cannot read search result", "", "", err)
		}
		_ = json.Unmarshal([]byte(sparseJSON), &c.SparseTerms)
		score := 1.0 / (1.0 + distance)
		if w, ok := q.ScopeWeights[c.Scope]; ok {
			score *= w
		}
		for prefix, boost := range q.PathBoosts {
			if strings.HasPrefix(c.Path, prefix) {
				score *= boost
				break
			}
		}
		hits = append(hits, SearchHit{Chunk: c, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *SQLiteVecStore) WriteCompletionMarker(ctx context.Context, collectionName string, marker CompletionMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker.Kind = MarkerKind
	payload, err := json.Marshal(marker)
	if err != nil {
		return errs.NewInternalError("Cannot encode completion marker", "", "", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO satori_markers (collection_name, payload) VALUES (?, ?)
		ON CONFLICT(collection_name) DO UPDATE SET payload = excluded.payload
	`, collectionName, string(payload))
	if err != nil {
		return errs.NewDatabaseError("Cannot write completion marker", collectionName, "", err)
	}
	return nil
}

func (s *SQLiteVecStore) ReadCompletionMarker(ctx context.Context, collectionName string) (*CompletionMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.conn.QueryRowContext(ctx, `SELECT payload FROM satori_markers WHERE collection_name = ?`, collectionName).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDatabaseError("Cannot read completion marker", collectionName, "", err)
	}

	var marker CompletionMarker
	if err := json.Unmarshal([]byte(payload), &marker); err != nil {
		return nil, errs.NewDatabaseError("Completion marker is corrupt", collectionName, "", err)
	}
	return &marker, nil
}

// CheckCollectionLimit is always true: local sqlite-vec has no hard cap.
func (s *SQLiteVecStore) CheckCollectionLimit(ctx context.Context) (bool, error) {
	return true, nil
}

func (s *SQLiteVecStore) ListManagedCollections(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, `SELECT name, codebase_path, created_at FROM satori_collections ORDER BY created_at`)
	if err != nil {
		return nil, errs.NewDatabaseError("Cannot list collections", "", "", err)
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var name, path, createdAt string
		if err := rows.Scan(&name, &path, &createdAt); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339, createdAt)
		out = append(out, CollectionInfo{Name: name, CodebasePath: path, CreatedAt: t})
	}
	return out, nil
}

func (s *SQLiteVecStore) Provider() fingerprint.VectorStoreProvider {
	return fingerprint.VectorStoreMilvus // local sqlite-vec presents the Milvus-compatible fingerprint identity
}

func (s *SQLiteVecStore) Close() error {
	return s.conn.Close()
}
