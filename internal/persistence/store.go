// Package persistence provides SQLite-based diplomacy state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/statecraft/internal/diplomacy"
	"github.com/talgya/statecraft/internal/faction"
	"github.com/talgya/statecraft/internal/trust"
)

// Store wraps a SQLite connection for diplomacy state persistence. It
// implements trust.RelationshipStore and persists negotiation sessions.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	st := &Store{conn: conn}
	if err := st.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (st *Store) Close() error {
	return st.conn.Close()
}

func (st *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		pair_key TEXT NOT NULL,
		at TEXT NOT NULL,
		kind TEXT NOT NULL,
		initiator TEXT NOT NULL,
		target TEXT NOT NULL,
		description TEXT NOT NULL,
		trust_impact REAL NOT NULL,
		reputation_impact REAL NOT NULL,
		tension_impact REAL NOT NULL,
		severity REAL NOT NULL,
		consequences_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trust_evolutions (
		pair_key TEXT PRIMARY KEY,
		faction_a TEXT NOT NULL,
		faction_b TEXT NOT NULL,
		a_trusts_b REAL NOT NULL,
		b_trusts_a REAL NOT NULL,
		volatility REAL NOT NULL,
		peak_trust REAL NOT NULL,
		low_trust REAL NOT NULL,
		baseline_compatibility REAL NOT NULL,
		updated_at TEXT NOT NULL,
		history_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS negotiation_sessions (
		id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		session_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_pair ON interactions(pair_key);
	CREATE INDEX IF NOT EXISTS idx_interactions_at ON interactions(at);
	`
	_, err := st.conn.Exec(schema)
	return err
}

// StoreInteraction appends one interaction record.
func (st *Store) StoreInteraction(rec trust.Interaction) error {
	key, _, _ := trust.KeyFor(rec.Initiator, rec.Target)
	consJSON, _ := json.Marshal(rec.Consequences)

	_, err := st.conn.Exec(`INSERT INTO interactions
		(id, pair_key, at, kind, initiator, target, description,
		 trust_impact, reputation_impact, tension_impact, severity, consequences_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(key), rec.At.UTC().Format(time.RFC3339Nano),
		string(rec.Kind), string(rec.Initiator), string(rec.Target), rec.Description,
		rec.TrustImpact, rec.ReputationImpact, rec.TensionImpact, rec.Severity,
		string(consJSON),
	)
	if err != nil {
		return fmt.Errorf("insert interaction %s: %w", rec.ID, err)
	}
	return nil
}

type interactionRow struct {
	ID               string  `db:"id"`
	At               string  `db:"at"`
	Kind             string  `db:"kind"`
	Initiator        string  `db:"initiator"`
	Target           string  `db:"target"`
	Description      string  `db:"description"`
	TrustImpact      float64 `db:"trust_impact"`
	ReputationImpact float64 `db:"reputation_impact"`
	TensionImpact    float64 `db:"tension_impact"`
	Severity         float64 `db:"severity"`
	ConsequencesJSON string  `db:"consequences_json"`
}

// Interactions returns a pair's full history ordered by timestamp.
func (st *Store) Interactions(a, b faction.ID) ([]trust.Interaction, error) {
	key, _, _ := trust.KeyFor(a, b)

	var rows []interactionRow
	err := st.conn.Select(&rows, `SELECT
		id, at, kind, initiator, target, description,
		trust_impact, reputation_impact, tension_impact, severity, consequences_json
		FROM interactions WHERE pair_key = ? ORDER BY at ASC`, string(key))
	if err != nil {
		return nil, err
	}

	out := make([]trust.Interaction, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(time.RFC3339Nano, r.At)
		if err != nil {
			return nil, fmt.Errorf("interaction %s: bad timestamp: %w", r.ID, err)
		}
		rec := trust.Interaction{
			ID:               r.ID,
			At:               at,
			Kind:             trust.Kind(r.Kind),
			Initiator:        faction.ID(r.Initiator),
			Target:           faction.ID(r.Target),
			Description:      r.Description,
			TrustImpact:      r.TrustImpact,
			ReputationImpact: r.ReputationImpact,
			TensionImpact:    r.TensionImpact,
			Severity:         r.Severity,
		}
		if r.ConsequencesJSON != "" && r.ConsequencesJSON != "null" {
			if err := json.Unmarshal([]byte(r.ConsequencesJSON), &rec.Consequences); err != nil {
				return nil, fmt.Errorf("interaction %s: bad consequences: %w", r.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// StoreEvolution inserts or replaces a pair's trust evolution.
func (st *Store) StoreEvolution(ev trust.Evolution) error {
	historyJSON, err := json.Marshal(ev.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	_, err = st.conn.Exec(`INSERT OR REPLACE INTO trust_evolutions
		(pair_key, faction_a, faction_b, a_trusts_b, b_trusts_a,
		 volatility, peak_trust, low_trust, baseline_compatibility, updated_at, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Key()), string(ev.FactionA), string(ev.FactionB),
		ev.ATrustB, ev.BTrustA, ev.Volatility, ev.PeakTrust, ev.LowTrust,
		ev.BaselineCompatibility, ev.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(historyJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert evolution %s: %w", ev.Key(), err)
	}
	return nil
}

type evolutionRow struct {
	FactionA              string  `db:"faction_a"`
	FactionB              string  `db:"faction_b"`
	ATrustB               float64 `db:"a_trusts_b"`
	BTrustA               float64 `db:"b_trusts_a"`
	Volatility            float64 `db:"volatility"`
	PeakTrust             float64 `db:"peak_trust"`
	LowTrust              float64 `db:"low_trust"`
	BaselineCompatibility float64 `db:"baseline_compatibility"`
	UpdatedAt             string  `db:"updated_at"`
	HistoryJSON           string  `db:"history_json"`
}

// Evolution returns a pair's trust evolution, or (nil, nil) when absent.
func (st *Store) Evolution(a, b faction.ID) (*trust.Evolution, error) {
	key, _, _ := trust.KeyFor(a, b)

	var row evolutionRow
	err := st.conn.Get(&row, `SELECT
		faction_a, faction_b, a_trusts_b, b_trusts_a, volatility,
		peak_trust, low_trust, baseline_compatibility, updated_at, history_json
		FROM trust_evolutions WHERE pair_key = ?`, string(key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("evolution %s: bad timestamp: %w", key, err)
	}
	ev := trust.Evolution{
		FactionA:              faction.ID(row.FactionA),
		FactionB:              faction.ID(row.FactionB),
		ATrustB:               row.ATrustB,
		BTrustA:               row.BTrustA,
		Volatility:            row.Volatility,
		PeakTrust:             row.PeakTrust,
		LowTrust:              row.LowTrust,
		BaselineCompatibility: row.BaselineCompatibility,
		UpdatedAt:             updatedAt,
	}
	if err := json.Unmarshal([]byte(row.HistoryJSON), &ev.History); err != nil {
		return nil, fmt.Errorf("evolution %s: bad history: %w", key, err)
	}
	return &ev, nil
}

// SaveSessions writes every negotiation session (full replace). The session
// body is stored as JSON; phase and timestamp are lifted into columns for
// inspection.
func (st *Store) SaveSessions(sessions []diplomacy.Session) error {
	tx, err := st.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM negotiation_sessions"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO negotiation_sessions
		(id, phase, updated_at, session_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sessions {
		body, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal session %s: %w", s.ID, err)
		}
		_, err = stmt.Exec(s.ID, string(s.Phase), s.UpdatedAt.UTC().Format(time.RFC3339Nano), string(body))
		if err != nil {
			return fmt.Errorf("insert session %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("negotiation sessions saved", "count", len(sessions))
	return nil
}

// Sessions loads every persisted negotiation session.
func (st *Store) Sessions() ([]diplomacy.Session, error) {
	var bodies []string
	err := st.conn.Select(&bodies, "SELECT session_json FROM negotiation_sessions ORDER BY updated_at ASC")
	if err != nil {
		return nil, err
	}

	out := make([]diplomacy.Session, 0, len(bodies))
	for _, body := range bodies {
		var s diplomacy.Session
		if err := json.Unmarshal([]byte(body), &s); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
