// Package recall is the semantic long-term memory: text fragments embedded
// locally and retrieved by cosine similarity. The index degrades gracefully,
// a failed backend turns every operation into a cheap no-op.
package recall

import (
	"bytes"
	"compress/flate"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/omax404/aiko/pkg/logger"
)

// Fragment is one retrievable memory unit.
type Fragment struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Score     float64
	CreatedAt time.Time
}

const defaultTopK = 3

// Index stores fragments in sqlite with their embeddings. A nil or failed
// Index is safe to call; Available reports whether the backend came up.
type Index struct {
	db       *sql.DB
	embedder Embedder
}

// NewIndex opens (or creates) the fragment database at path. Initialization
// failure is logged and yields an unavailable index, never an error: recall
// is an enhancement, not a dependency.
func NewIndex(path, model string) *Index {
	idx := &Index{embedder: NewEmbedder(model)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.WarnCF("recall", "Recall disabled, cannot create db dir",
			map[string]any{"path": path, "error": err.Error()})
		return idx
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.WarnCF("recall", "Recall disabled, cannot open db",
			map[string]any{"path": path, "error": err.Error()})
		return idx
	}
	// Single shared connection avoids sqlite writer lock contention between
	// the brain and the ingest command.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx.db = db
	if err := idx.init(); err != nil {
		logger.WarnCF("recall", "Recall disabled, schema init failed",
			map[string]any{"error": err.Error()})
		_ = db.Close()
		idx.db = nil
	}
	return idx
}

func (i *Index) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS fragments (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			model TEXT NOT NULL,
			vector_json TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS fragments_created_idx ON fragments(created_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := i.db.Exec(stmt); err != nil {
			return fmt.Errorf("init recall schema: %w", err)
		}
	}
	return nil
}

// Available reports whether the backing store initialized.
func (i *Index) Available() bool {
	return i != nil && i.db != nil
}

func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Add embeds and stores one fragment. Empty text and an unavailable index
// are silent no-ops; storage errors are logged, not returned.
func (i *Index) Add(ctx context.Context, text string, metadata map[string]string) {
	if !i.Available() {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	vec := i.embedder.Embed(text)
	_, err := i.db.ExecContext(ctx, `
INSERT INTO fragments(id, text, metadata_json, model, vector_json, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`,
		"frg-"+uuid.NewString(), text, encodeMeta(metadata), i.embedder.ModelID(), encodeVector(vec), time.Now().UnixMilli())
	if err != nil {
		logger.WarnCF("recall", "Failed to store fragment",
			map[string]any{"error": err.Error()})
	}
}

// Query returns the top-k fragments most similar to text, best first.
// Any backend failure yields an empty result.
func (i *Index) Query(ctx context.Context, text string, k int) []Fragment {
	if !i.Available() || strings.TrimSpace(text) == "" {
		return nil
	}
	if k <= 0 {
		k = defaultTopK
	}

	rows, err := i.db.QueryContext(ctx, `
SELECT id, text, metadata_json, vector_json, created_at_ms
FROM fragments
WHERE model = ?`, i.embedder.ModelID())
	if err != nil {
		logger.WarnCF("recall", "Query failed", map[string]any{"error": err.Error()})
		return nil
	}
	defer rows.Close()

	queryVec := i.embedder.Embed(text)
	candidates := []Fragment{}
	for rows.Next() {
		var f Fragment
		var metaRaw, vecRaw string
		var createdMS int64
		if err := rows.Scan(&f.ID, &f.Text, &metaRaw, &vecRaw, &createdMS); err != nil {
			logger.WarnCF("recall", "Scan failed", map[string]any{"error": err.Error()})
			return nil
		}
		f.Metadata = decodeMeta(metaRaw)
		f.CreatedAt = time.UnixMilli(createdMS)
		f.Score = cosineSimilarity(queryVec, decodeVector(vecRaw))
		candidates = append(candidates, f)
	}
	if err := rows.Err(); err != nil {
		logger.WarnCF("recall", "Iterate failed", map[string]any{"error": err.Error()})
		return nil
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Count returns the number of stored fragments, 0 when unavailable.
func (i *Index) Count(ctx context.Context) int {
	if !i.Available() {
		return 0
	}
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Ingest reads a document from disk and stores it as fragments, chunked by
// blank-line separated paragraphs. PDFs get a best-effort text extraction;
// everything else is read verbatim. Returns the number of fragments stored.
func (i *Index) Ingest(ctx context.Context, path string) (int, error) {
	if !i.Available() {
		return 0, fmt.Errorf("recall index unavailable")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read document: %w", err)
	}

	var text string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text = extractPDFText(data)
		if strings.TrimSpace(text) == "" {
			return 0, fmt.Errorf("no extractable text in %s", filepath.Base(path))
		}
	} else {
		text = string(data)
	}

	source := filepath.Base(path)
	count := 0
	for _, chunk := range chunkText(text) {
		i.Add(ctx, chunk, map[string]string{"source": source})
		count++
	}
	logger.InfoCF("recall", "Ingested document",
		map[string]any{"source": source, "fragments": count})
	return count, nil
}

// chunkText splits on blank lines, merging runts into the previous chunk.
func chunkText(text string) []string {
	parts := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := []string{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) < 40 && len(out) > 0 {
			out[len(out)-1] += "\n" + p
			continue
		}
		out = append(out, p)
	}
	return out
}

var pdfTextPattern = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)

// extractPDFText pulls literal text operands out of (optionally deflated)
// PDF content streams. Good enough for digitally-produced documents; scanned
// PDFs come back empty.
func extractPDFText(data []byte) string {
	var b strings.Builder
	rest := data
	for {
		start := bytes.Index(rest, []byte("stream"))
		if start < 0 {
			break
		}
		rest = rest[start+len("stream"):]
		rest = bytes.TrimLeft(rest, "\r\n")
		end := bytes.Index(rest, []byte("endstream"))
		if end < 0 {
			break
		}
		content := rest[:end]
		rest = rest[end:]

		if decoded, err := inflate(content); err == nil {
			content = decoded
		}
		for _, m := range pdfTextPattern.FindAllSubmatch(content, -1) {
			b.Write(unescapePDFString(m[1]))
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func inflate(data []byte) ([]byte, error) {
	// FlateDecode streams carry a zlib header; skip it for raw flate.
	if len(data) > 2 && data[0] == 0x78 {
		data = data[2:]
	}
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil && out.Len() == 0 {
		return nil, err
	}
	return out.Bytes(), nil
}

func unescapePDFString(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return out
}

func encodeMeta(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMeta(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

func encodeVector(vec []float32) string {
	if len(vec) == 0 {
		return "[]"
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeVector(raw string) []float32 {
	if raw == "" {
		return nil
	}
	out := []float32{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
