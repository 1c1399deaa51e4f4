package store

import (
	"time"
)

// Rule is a stored routing directive. Rules are evaluated in ascending
// ID order; ordering is the only precedence mechanism.
type Rule struct {
	ID              int64     `json:"id"`
	FunctionKey     string    `json:"function_key"`    // handler to invoke, "" for reply-only
	Active          bool      `json:"active"`
	Blacklist       []string  `json:"blacklist"`       // room ids never matched
	Whitelist       []string  `json:"whitelist"`       // room ids matched; ["all"] is a wildcard
	TypeFilter      string    `json:"type_filter"`     // "all" or a content-type code
	Keywords        []string  `json:"keywords"`        // reserved for assisted matching
	RequiresMention bool      `json:"requires_mention"`
	AIFlag          bool      `json:"ai_flag"`         // rewrite display text before matching
	Pattern         string    `json:"pattern"`         // regex over display text, DOTALL
	ReplyText       string    `json:"reply_text"`
	CheckPermission bool      `json:"check_permission"` // gate handler on membership
	RequiredLevel   int       `json:"required_level"`
	Module          string    `json:"module"` // capability tag a member must hold
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Member is a per-actor authorization record. Key is the sender wxid
// for direct chats or "wxid#roomid" for group-scoped membership.
type Member struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	Modules   []string  `json:"modules"`
	Score     float64   `json:"score"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledTask is a stored cron entry that fires a handler.
type ScheduledTask struct {
	ID          int64      `json:"id"`
	FunctionKey string     `json:"function_key"`
	CronExpr    string     `json:"cron_expr"`
	Args        string     `json:"args,omitempty"` // JSON payload passed to the handler
	OneOff      bool       `json:"one_off"`
	Consumed    bool       `json:"consumed"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	function_key TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT 1,
	blacklist TEXT NOT NULL DEFAULT '[]',
	whitelist TEXT NOT NULL DEFAULT '["all"]',
	type_filter TEXT NOT NULL DEFAULT 'all',
	keywords TEXT NOT NULL DEFAULT '[]',
	requires_mention BOOLEAN NOT NULL DEFAULT 0,
	ai_flag BOOLEAN NOT NULL DEFAULT 0,
	pattern TEXT NOT NULL DEFAULT '',
	reply_text TEXT NOT NULL DEFAULT '',
	check_permission BOOLEAN NOT NULL DEFAULT 0,
	required_level INTEGER NOT NULL DEFAULT 0,
	module TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(active);
CREATE INDEX IF NOT EXISTS idx_rules_function ON rules(function_key);

CREATE TABLE IF NOT EXISTS members (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	level INTEGER NOT NULL DEFAULT 0,
	modules TEXT NOT NULL DEFAULT '[]',
	score REAL NOT NULL DEFAULT 0,
	balance REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	function_key TEXT NOT NULL,
	cron_expr TEXT NOT NULL,
	args TEXT NOT NULL DEFAULT '',
	one_off BOOLEAN NOT NULL DEFAULT 0,
	consumed BOOLEAN NOT NULL DEFAULT 0,
	last_fired_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_open ON scheduled_tasks(consumed);
`
