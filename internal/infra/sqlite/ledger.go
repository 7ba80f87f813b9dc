package sqlite

import (
	"database/sql"
	"time"

	"github.com/ampli-network/ampli/internal/domain"
)

// ─── Usage Ledger ───────────────────────────────────────────────────────────

// AppendUsage adds a billing ledger entry. Implements finops.Ledger.
func (d *DB) AppendUsage(ev domain.UsageEvent) error {
	_, err := d.db.Exec(
		`INSERT INTO usage_ledger (timestamp, tenant, ref_id, kind, cost_micro, task_type, platforms, priority)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.Unix(), ev.Tenant, ev.RefID, ev.Kind, ev.CostMicro,
		nullStr(ev.Tags.TaskType), ev.Tags.Platforms, nullStr(ev.Tags.Priority),
	)
	return err
}

// TenantUsageMicro sums a tenant's ledgered spend since the given time.
func (d *DB) TenantUsageMicro(tenant string, since time.Time) (int64, error) {
	var total sql.NullInt64
	err := d.db.QueryRow(
		`SELECT SUM(cost_micro) FROM usage_ledger WHERE tenant = ? AND timestamp >= ?`,
		tenant, since.Unix(),
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// RecentUsage returns the most recent ledger entries for a tenant.
func (d *DB) RecentUsage(tenant string, limit int) ([]domain.UsageEvent, error) {
	rows, err := d.db.Query(
		`SELECT timestamp, tenant, ref_id, kind, cost_micro, task_type, platforms, priority
		 FROM usage_ledger WHERE tenant = ? ORDER BY id DESC LIMIT ?`,
		tenant, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.UsageEvent
	for rows.Next() {
		var ev domain.UsageEvent
		var ts int64
		var taskType, priority sql.NullString
		if err := rows.Scan(&ts, &ev.Tenant, &ev.RefID, &ev.Kind, &ev.CostMicro,
			&taskType, &ev.Tags.Platforms, &priority); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(ts, 0)
		ev.Tags.Tenant = ev.Tenant
		ev.Tags.Kind = ev.Kind
		ev.Tags.TaskType = taskType.String
		ev.Tags.Priority = priority.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ─── Competition Audit Trail ────────────────────────────────────────────────

// InsertCompetition records a settled competition.
func (d *DB) InsertCompetition(c domain.Competition, res domain.CompetitionResult) error {
	_, err := d.db.Exec(
		`INSERT INTO competitions (id, tenant, status, champion, champion_score, win_rate_delta, evolved, cost_micro, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			champion=excluded.champion,
			champion_score=excluded.champion_score,
			win_rate_delta=excluded.win_rate_delta,
			evolved=excluded.evolved,
			cost_micro=excluded.cost_micro,
			completed_at=excluded.completed_at`,
		c.ID, c.Tenant, string(res.Status), nullStr(res.Champion), res.ChampionScore,
		res.WinRateDelta, res.Evolved, res.CostMicro,
		c.CreatedAt.Unix(), nullableUnix(c.CompletedAt),
	)
	return err
}

// CompetitionCount returns how many competitions a tenant has settled.
func (d *DB) CompetitionCount(tenant string) (int64, error) {
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM competitions WHERE tenant = ?`, tenant).Scan(&n)
	return n, err
}

// ─── Evolution Dataset ──────────────────────────────────────────────────────

// AppendEvolutionSample hands champion content to the training dataset.
func (d *DB) AppendEvolutionSample(competitionID, tenant, variant, content string, score, delta float64) error {
	_, err := d.db.Exec(
		`INSERT INTO evolution_dataset (competition_id, tenant, variant, content, score, win_rate_delta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		competitionID, tenant, variant, content, score, delta, time.Now().Unix(),
	)
	return err
}

// EvolutionSampleCount returns the size of the training dataset.
func (d *DB) EvolutionSampleCount() (int64, error) {
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM evolution_dataset`).Scan(&n)
	return n, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
