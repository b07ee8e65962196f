// Package journal keeps a local SQLite record of orchestration summaries for
// the CLI. The pipeline itself never reads it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tiger/mediation-pipeline/api/mediation"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeLayout has fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                   TEXT PRIMARY KEY,
	conversation_id      TEXT NOT NULL,
	created_at           TEXT NOT NULL,
	source               TEXT NOT NULL,
	dominant_emotion     TEXT NOT NULL,
	emotional_state      TEXT NOT NULL,
	conflict_level       INTEGER NOT NULL,
	resolution_potential INTEGER NOT NULL,
	confidence           REAL NOT NULL,
	conflict_type        TEXT NOT NULL,
	severity             TEXT NOT NULL,
	documents            INTEGER NOT NULL,
	recommendations      TEXT NOT NULL,
	next_actions         TEXT NOT NULL,
	voice                INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_conversation ON runs (conversation_id, created_at);
`

// Entry is one recorded orchestration.
type Entry struct {
	ID                  string    `json:"id"`
	ConversationID      string    `json:"conversationId"`
	CreatedAt           time.Time `json:"createdAt"`
	Source              string    `json:"source"`
	DominantEmotion     string    `json:"dominantEmotion"`
	EmotionalState      string    `json:"emotionalState"`
	ConflictLevel       int       `json:"conflictLevel"`
	ResolutionPotential int       `json:"resolutionPotential"`
	Confidence          float64   `json:"confidence"`
	ConflictType        string    `json:"conflictType"`
	Severity            string    `json:"severity"`
	Documents           int       `json:"documents"`
	Recommendations     []string  `json:"recommendations"`
	NextActions         []string  `json:"nextActions"`
	Voice               bool      `json:"voice"`
}

// Journal is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and its parent directory when missing.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	for _, p := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a summary of result under conversationID.
func (j *Journal) Record(ctx context.Context, conversationID string, result mediation.OrchestrationResult) (Entry, error) {
	e := Entry{
		ID:                  uuid.NewString(),
		ConversationID:      conversationID,
		CreatedAt:           j.now().UTC(),
		Source:              string(result.EmotionAnalysis.Source),
		DominantEmotion:     result.EmotionAnalysis.DominantEmotion,
		EmotionalState:      string(result.EmotionAnalysis.EmotionalState),
		ConflictLevel:       result.EmotionAnalysis.ConflictLevel,
		ResolutionPotential: result.EmotionAnalysis.ResolutionPotential,
		Confidence:          result.EmotionAnalysis.Confidence,
		ConflictType:        string(result.ConflictAnalysis.ConflictType),
		Severity:            string(result.ConflictAnalysis.Severity),
		Documents:           len(result.DocumentAnalyses),
		Recommendations:     nonNil(result.Recommendations),
		NextActions:         nonNil(result.NextActions),
		Voice:               result.VoiceResponse != nil,
	}
	recs, err := json.Marshal(e.Recommendations)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode recommendations: %w", err)
	}
	actions, err := json.Marshal(e.NextActions)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode next actions: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO runs (id, conversation_id, created_at, source, dominant_emotion, emotional_state,
			conflict_level, resolution_potential, confidence, conflict_type, severity, documents,
			recommendations, next_actions, voice)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConversationID, e.CreatedAt.Format(timeLayout), e.Source, e.DominantEmotion, e.EmotionalState,
		e.ConflictLevel, e.ResolutionPotential, e.Confidence, e.ConflictType, e.Severity, e.Documents,
		string(recs), string(actions), boolToInt(e.Voice),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: insert run: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. An empty conversationID
// lists every conversation.
func (j *Journal) Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, conversation_id, created_at, source, dominant_emotion, emotional_state,
		conflict_level, resolution_potential, confidence, conflict_type, severity, documents,
		recommendations, next_actions, voice FROM runs`
	args := []any{}
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query runs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			createdAt string
			recs      string
			actions   string
			voice     int
		)
		if err := rows.Scan(&e.ID, &e.ConversationID, &createdAt, &e.Source, &e.DominantEmotion, &e.EmotionalState,
			&e.ConflictLevel, &e.ResolutionPotential, &e.Confidence, &e.ConflictType, &e.Severity, &e.Documents,
			&recs, &actions, &voice); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("journal: parse created_at: %w", err)
		}
		if err := json.Unmarshal([]byte(recs), &e.Recommendations); err != nil {
			return nil, fmt.Errorf("journal: decode recommendations: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &e.NextActions); err != nil {
			return nil, fmt.Errorf("journal: decode next actions: %w", err)
		}
		e.Voice = voice != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate runs: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
