package storage

// sqlite.go: journal de auditoría del liquidador.
//
// Estrategia:
//   - `attempts`: una fila por acción (liquidación, swap, exit), UPSERT por id.
//     Se escribe al enviar y se actualiza al resolver la confirmación.
//   - `cycles`: resumen ligero por ciclo del control loop.
//   - Tiempos en milisegundos UTC, cantidades como TEXT decimal exacto.
//   - Prune automático al arrancar: cycles > 30d, attempts > 180d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por acción enviada (o simulada en dry run)
CREATE TABLE IF NOT EXISTS attempts (
    id            TEXT PRIMARY KEY,
    kind          TEXT    NOT NULL,
    account       TEXT    NOT NULL DEFAULT '',
    from_symbol   TEXT    NOT NULL DEFAULT '',
    to_symbol     TEXT    NOT NULL DEFAULT '',
    quantity      TEXT    NOT NULL DEFAULT '0',
    loan_to_value TEXT    NOT NULL DEFAULT '0',
    price         TEXT    NOT NULL DEFAULT '0',
    tx_id         TEXT    NOT NULL DEFAULT '',
    state         TEXT    NOT NULL,
    error         TEXT    NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL,
    resolved_at   INTEGER
);

-- Resumen por ciclo
CREATE TABLE IF NOT EXISTS cycles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at       INTEGER NOT NULL,
    duration_ms      INTEGER NOT NULL DEFAULT 0,
    pages            INTEGER NOT NULL DEFAULT 0,
    vaults_evaluated INTEGER NOT NULL DEFAULT 0,
    eligible         INTEGER NOT NULL DEFAULT 0,
    liquidated       INTEGER NOT NULL DEFAULT 0,
    ftoken_balance   TEXT    NOT NULL DEFAULT '0',
    error            TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_state   ON attempts(state);
CREATE INDEX IF NOT EXISTS idx_cycles_started   ON cycles(started_at DESC);
`

const (
	retentionCycles   = 30 * 24 * time.Hour
	retentionAttempts = 180 * 24 * time.Hour
)

// SQLiteStorage implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveAttempt inserta el intento o actualiza su estado si ya existe.
func (s *SQLiteStorage) SaveAttempt(ctx context.Context, a domain.Attempt) error {
	if a.ID == "" {
		return fmt.Errorf("storage.SaveAttempt: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts
			(id, kind, account, from_symbol, to_symbol, quantity, loan_to_value,
			 price, tx_id, state, error, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tx_id       = excluded.tx_id,
			state       = excluded.state,
			error       = excluded.error,
			resolved_at = excluded.resolved_at
	`,
		a.ID,
		string(a.Kind),
		a.Account,
		a.FromSymbol,
		a.ToSymbol,
		a.Quantity.String(),
		a.LoanToValue.String(),
		a.Price.String(),
		a.TxID,
		string(a.State),
		a.Error,
		toMillis(a.CreatedAt),
		nullMillis(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveAttempt: upsert %s: %w", a.ID, err)
	}
	return nil
}

// SaveCycle registra el resumen de un ciclo.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, c domain.CycleSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
			(started_at, duration_ms, pages, vaults_evaluated, eligible, liquidated, ftoken_balance, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		toMillis(c.StartedAt),
		c.Duration.Milliseconds(),
		c.Pages,
		c.VaultsEvaluated,
		c.Eligible,
		boolToInt(c.Liquidated),
		c.FTokenBalance.String(),
		c.Error,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: insert: %w", err)
	}
	return nil
}

// GetAttempts devuelve los intentos creados en el rango, más recientes primero.
func (s *SQLiteStorage) GetAttempts(ctx context.Context, from, to time.Time) ([]domain.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, account, from_symbol, to_symbol, quantity, loan_to_value,
		       price, tx_id, state, error, created_at, resolved_at
		FROM attempts
		WHERE created_at BETWEEN ? AND ?
		ORDER BY created_at DESC
	`, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetAttempts: query: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var (
			a               domain.Attempt
			kind, state     string
			qty, ltv, price string
			createdAt       int64
			resolvedAt      sql.NullInt64
		)
		if err := rows.Scan(
			&a.ID, &kind, &a.Account, &a.FromSymbol, &a.ToSymbol,
			&qty, &ltv, &price, &a.TxID, &state, &a.Error,
			&createdAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.GetAttempts: scan row: %w", err)
		}
		a.Kind = domain.AttemptKind(kind)
		a.State = domain.AttemptState(state)
		a.Quantity = parseDecimal(qty)
		a.LoanToValue = parseDecimal(ltv)
		a.Price = parseDecimal(price)
		a.CreatedAt = fromMillis(createdAt)
		if resolvedAt.Valid {
			t := fromMillis(resolvedAt.Int64)
			a.ResolvedAt = &t
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetCycles devuelve los ciclos iniciados en el rango, más recientes primero.
func (s *SQLiteStorage) GetCycles(ctx context.Context, from, to time.Time) ([]domain.CycleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, duration_ms, pages, vaults_evaluated, eligible, liquidated, ftoken_balance, error
		FROM cycles
		WHERE started_at BETWEEN ? AND ?
		ORDER BY started_at DESC
	`, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetCycles: query: %w", err)
	}
	defer rows.Close()

	var cycles []domain.CycleSummary
	for rows.Next() {
		var (
			c                     domain.CycleSummary
			startedAt, durationMs int64
			liquidated            int
			balance               string
		)
		if err := rows.Scan(&startedAt, &durationMs, &c.Pages, &c.VaultsEvaluated, &c.Eligible,
			&liquidated, &balance, &c.Error); err != nil {
			return nil, fmt.Errorf("storage.GetCycles: scan row: %w", err)
		}
		c.StartedAt = fromMillis(startedAt)
		c.Duration = time.Duration(durationMs) * time.Millisecond
		c.Liquidated = liquidated == 1
		c.FTokenBalance = parseDecimal(balance)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	now := time.Now()
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, toMillis(now.Add(-retentionCycles)))
	s.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, toMillis(now.Add(-retentionAttempts)))
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
