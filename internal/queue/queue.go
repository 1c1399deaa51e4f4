// Package queue is the durable outbound queue: every send request is
// persisted before delivery and marked consumed only after the
// gateway confirms success.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TokenSource yields the current gateway credential. An error aborts
// the drain tick without touching any row.
type TokenSource interface {
	CheckToken() (string, error)
}

// Outcome reports what one drain tick did.
type Outcome struct {
	Delivered bool   `json:"delivered"`
	RequestID int64  `json:"request_id,omitempty"`
	Response  string `json:"response,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// postFn issues one delivery attempt and returns the response body.
// Swappable in tests.
type postFn func(ctx context.Context, destination string, form url.Values, token string) (string, error)

type Options struct {
	MinInterval time.Duration // drain loop sleep lower bound
	MaxInterval time.Duration // drain loop sleep upper bound
	Timeout     time.Duration // per-delivery HTTP timeout
}

type Queue struct {
	dbPath  string
	db      *sql.DB // producer-side handle; drains open their own
	tokens  TokenSource
	opts    Options
	logger  *slog.Logger
	post    postFn
	httpCli *http.Client
}

func New(dbPath string, tokens TokenSource, opts Options, logger *slog.Logger) (*Queue, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 5 * time.Second
	}
	if opts.MaxInterval < opts.MinInterval {
		opts.MaxInterval = opts.MinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply queue schema: %w", err)
	}

	q := &Queue{
		dbPath:  dbPath,
		db:      db,
		tokens:  tokens,
		opts:    opts,
		logger:  logger.With("component", "queue"),
		httpCli: &http.Client{Timeout: opts.Timeout},
	}
	q.post = q.httpPost
	return q, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue db: %w", err)
	}
	return db, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue persists one outbound request and returns. It never
// performs network I/O; delivery happens on the drain path.
func (q *Queue) Enqueue(ctx context.Context, payload url.Values, destination, producer, messageID string) error {
	if messageID == "" {
		messageID = uuid.NewString()
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO queues (msg_id, payload, destination, producer, enqueued_at)
		VALUES (?, ?, ?, ?, ?)`,
		messageID, payload.Encode(), destination, producer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue outbound request: %w", err)
	}
	q.logger.Debug("enqueued outbound request", "producer", producer, "destination", destination, "msg_id", messageID)
	return nil
}

// Pending returns the number of unconsumed rows.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queues WHERE is_consumed = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return n, nil
}

// DrainOnce attempts to deliver the single oldest pending request.
// The row is marked consumed only after the gateway returns 2xx; any
// failure leaves it pending for the next tick. Each invocation opens
// its own short-lived connection so drains never contend with
// producers over a shared handle.
func (q *Queue) DrainOnce(ctx context.Context) (Outcome, error) {
	db, err := open(q.dbPath)
	if err != nil {
		return Outcome{}, err
	}
	defer db.Close()

	var (
		id          int64
		msgID       string
		payload     string
		destination string
	)
	err = db.QueryRowContext(ctx, `SELECT id, msg_id, payload, destination
		FROM queues WHERE is_consumed = 0
		ORDER BY enqueued_at ASC, id ASC LIMIT 1`).
		Scan(&id, &msgID, &payload, &destination)
	if err == sql.ErrNoRows {
		return Outcome{Reason: "empty"}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to select pending request: %w", err)
	}

	token, err := q.tokens.CheckToken()
	if err != nil {
		// Leave the row untouched; the next tick retries with a
		// fresh credential.
		return Outcome{RequestID: id, Reason: "credential unavailable"}, fmt.Errorf("failed to obtain token: %w", err)
	}

	form, err := url.ParseQuery(payload)
	if err != nil {
		// Malformed rows retry forever at the polling interval, the
		// same as a failing gateway. See the design notes.
		q.logger.Error("pending request has malformed payload", "request_id", id, "error", err)
		return Outcome{RequestID: id, Reason: "malformed payload"}, nil
	}

	body, err := q.post(ctx, destination, form, token)
	if err != nil {
		q.logger.Warn("delivery failed, request stays pending",
			"request_id", id, "msg_id", msgID, "destination", destination, "error", err)
		return Outcome{RequestID: id, Reason: err.Error()}, nil
	}

	if _, err := db.ExecContext(ctx, `UPDATE queues SET is_consumed = 1, consumed_at = ? WHERE id = ?`,
		time.Now().UTC(), id); err != nil {
		return Outcome{RequestID: id}, fmt.Errorf("failed to mark request consumed: %w", err)
	}
	q.logger.Info("delivered outbound request", "request_id", id, "msg_id", msgID)
	return Outcome{Delivered: true, RequestID: id, Response: body}, nil
}

// Run drains the queue until ctx is cancelled, sleeping a randomized
// interval between ticks to avoid thundering-herd retries.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("drain loop started", "min_interval", q.opts.MinInterval, "max_interval", q.opts.MaxInterval)
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("drain loop stopped")
			return
		case <-time.After(q.jitter()):
		}
		if _, err := q.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			q.logger.Warn("drain tick aborted", "error", err)
		}
	}
}

func (q *Queue) jitter() time.Duration {
	spread := q.opts.MaxInterval - q.opts.MinInterval
	if spread <= 0 {
		return q.opts.MinInterval
	}
	return q.opts.MinInterval + time.Duration(rand.Int63n(int64(spread)))
}

func (q *Queue) httpPost(ctx context.Context, destination string, form url.Values, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := q.httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
