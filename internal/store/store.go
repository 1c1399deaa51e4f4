// Package store persists rules, memberships and scheduled tasks in a
// local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for components that share the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

const ruleColumns = `id, COALESCE(function_key,''), active, COALESCE(blacklist,'[]'),
	COALESCE(whitelist,'["all"]'), COALESCE(type_filter,'all'), COALESCE(keywords,'[]'),
	requires_mention, ai_flag, COALESCE(pattern,''), COALESCE(reply_text,''),
	check_permission, required_level, COALESCE(module,''), created_at, updated_at`

// ListActiveRules returns active rules in ascending ID order, the
// order the router evaluates them in.
func (s *Store) ListActiveRules() ([]Rule, error) {
	rows, err := s.db.Query(`SELECT `+ruleColumns+` FROM rules WHERE active = 1 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListRules returns every stored rule, active or not.
func (s *Store) ListRules() ([]Rule, error) {
	rows, err := s.db.Query(`SELECT ` + ruleColumns + ` FROM rules ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetRuleByFunction returns the first rule registered for a handler
// key, or nil when none exists.
func (s *Store) GetRuleByFunction(functionKey string) (*Rule, error) {
	rows, err := s.db.Query(`SELECT `+ruleColumns+` FROM rules WHERE function_key = ? ORDER BY id ASC LIMIT 1`, functionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	defer rows.Close()
	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

func (s *Store) InsertRule(r *Rule) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO rules
		(function_key, active, blacklist, whitelist, type_filter, keywords,
		 requires_mention, ai_flag, pattern, reply_text, check_permission, required_level, module)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FunctionKey, r.Active, marshalList(r.Blacklist), marshalList(r.Whitelist),
		emptyOr(r.TypeFilter, "all"), marshalList(r.Keywords),
		r.RequiresMention, r.AIFlag, r.Pattern, r.ReplyText,
		r.CheckPermission, r.RequiredLevel, r.Module)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rule: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) SetRuleActive(id int64, active bool) error {
	_, err := s.db.Exec(`UPDATE rules SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteRule(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var rules []Rule
	for rows.Next() {
		var r Rule
		var blacklist, whitelist, keywords string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.FunctionKey, &r.Active, &blacklist,
			&whitelist, &r.TypeFilter, &keywords,
			&r.RequiresMention, &r.AIFlag, &r.Pattern, &r.ReplyText,
			&r.CheckPermission, &r.RequiredLevel, &r.Module,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Blacklist = unmarshalList(blacklist)
		r.Whitelist = unmarshalList(whitelist)
		r.Keywords = unmarshalList(keywords)
		r.CreatedAt = createdAt.Time
		r.UpdatedAt = updatedAt.Time
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// GetMember returns the membership record for a key, or nil when the
// sender has none.
func (s *Store) GetMember(key string) (*Member, error) {
	row := s.db.QueryRow(`SELECT id, key, COALESCE(name,''), level, COALESCE(modules,'[]'),
		score, balance, created_at, updated_at FROM members WHERE key = ?`, key)

	var m Member
	var modules string
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&m.ID, &m.Key, &m.Name, &m.Level, &modules, &m.Score, &m.Balance, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", key, err)
	}
	m.Modules = unmarshalList(modules)
	m.CreatedAt = createdAt.Time
	m.UpdatedAt = updatedAt.Time
	return &m, nil
}

func (s *Store) UpsertMember(m *Member) error {
	_, err := s.db.Exec(`INSERT INTO members (key, name, level, modules, score, balance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			level = excluded.level,
			modules = excluded.modules,
			score = excluded.score,
			balance = excluded.balance,
			updated_at = CURRENT_TIMESTAMP`,
		m.Key, m.Name, m.Level, marshalList(m.Modules), m.Score, m.Balance)
	if err != nil {
		return fmt.Errorf("failed to upsert member %s: %w", m.Key, err)
	}
	return nil
}

func (s *Store) DeleteMember(key string) error {
	_, err := s.db.Exec(`DELETE FROM members WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete member %s: %w", key, err)
	}
	return nil
}

// AdjustScore adds delta to a member's score entitlement.
func (s *Store) AdjustScore(key string, delta float64) error {
	res, err := s.db.Exec(`UPDATE members SET score = score + ?, updated_at = CURRENT_TIMESTAMP WHERE key = ?`, delta, key)
	if err != nil {
		return fmt.Errorf("failed to adjust score for %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no member %s", key)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scheduled tasks
// ---------------------------------------------------------------------------

func (s *Store) InsertScheduledTask(t *ScheduledTask) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO scheduled_tasks (function_key, cron_expr, args, one_off)
		VALUES (?, ?, ?, ?)`,
		t.FunctionKey, t.CronExpr, t.Args, t.OneOff)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scheduled task: %w", err)
	}
	return res.LastInsertId()
}

// ListOpenTasks returns tasks that have not been consumed.
func (s *Store) ListOpenTasks() ([]ScheduledTask, error) {
	rows, err := s.db.Query(`SELECT id, function_key, cron_expr, COALESCE(args,''),
		one_off, consumed, last_fired_at, created_at
		FROM scheduled_tasks WHERE consumed = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []ScheduledTask
	for rows.Next() {
		var t ScheduledTask
		var lastFired sql.NullTime
		var createdAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.FunctionKey, &t.CronExpr, &t.Args,
			&t.OneOff, &t.Consumed, &lastFired, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		if lastFired.Valid {
			t.LastFiredAt = &lastFired.Time
		}
		t.CreatedAt = createdAt.Time
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkTaskFired records a firing and consumes one-off tasks.
func (s *Store) MarkTaskFired(id int64, firedAt time.Time, oneOff bool) error {
	_, err := s.db.Exec(`UPDATE scheduled_tasks SET last_fired_at = ?, consumed = CASE WHEN ? THEN 1 ELSE consumed END WHERE id = ?`,
		firedAt.UTC(), oneOff, id)
	if err != nil {
		return fmt.Errorf("failed to mark task %d fired: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteScheduledTask(id int64) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled task %d: %w", id, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}

func emptyOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
