// Package tasks fires stored cron entries into the handler registry.
package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/kamir/gowxbot/internal/store"
	"github.com/kamir/gowxbot/internal/wxmsg"
)

// Dispatcher invokes a handler by function key.
type Dispatcher interface {
	Dispatch(ctx context.Context, key string, msg *wxmsg.InboundMessage)
}

// TaskStore is the persistence the scheduler needs.
type TaskStore interface {
	ListOpenTasks() ([]store.ScheduledTask, error)
	MarkTaskFired(id int64, firedAt time.Time, oneOff bool) error
}

type Scheduler struct {
	tasks    TaskStore
	dispatch Dispatcher
	tick     time.Duration
	logger   *slog.Logger
}

func NewScheduler(tasks TaskStore, dispatch Dispatcher, tick time.Duration, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:    tasks,
		dispatch: dispatch,
		tick:     tick,
		logger:   logger.With("component", "tasks"),
	}
}

// Run fires due tasks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("task scheduler started", "tick", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("task scheduler stopped")
			return
		case now := <-ticker.C:
			s.FireDue(ctx, now)
		}
	}
}

// FireDue dispatches every open task whose cron expression is due at
// ref. Tasks already fired within the current minute are skipped so a
// sub-minute tick cannot double-fire them.
func (s *Scheduler) FireDue(ctx context.Context, ref time.Time) {
	// Cron granularity is one minute and the ticker lands on an
	// arbitrary second; align the reference or nothing is ever due.
	ref = ref.Truncate(time.Minute)

	open, err := s.tasks.ListOpenTasks()
	if err != nil {
		s.logger.Error("failed to list scheduled tasks", "error", err)
		return
	}

	gron := gronx.New()
	for _, task := range open {
		due, err := gron.IsDue(task.CronExpr, ref)
		if err != nil {
			s.logger.Warn("skipping task with invalid cron expression",
				"task_id", task.ID, "cron", task.CronExpr, "error", err)
			continue
		}
		if !due {
			continue
		}
		if task.LastFiredAt != nil && ref.Sub(*task.LastFiredAt) < time.Minute {
			continue
		}

		msg := syntheticMessage(task)
		s.logger.Info("firing scheduled task", "task_id", task.ID, "function", task.FunctionKey)
		s.dispatch.Dispatch(ctx, task.FunctionKey, msg)

		if err := s.tasks.MarkTaskFired(task.ID, ref, task.OneOff); err != nil {
			s.logger.Error("failed to record task firing", "task_id", task.ID, "error", err)
		}
	}
}

// syntheticMessage builds the message a cron firing hands to its
// handler. Args may override room, sender and display text.
func syntheticMessage(task store.ScheduledTask) *wxmsg.InboundMessage {
	msg := &wxmsg.InboundMessage{
		ContentType: wxmsg.TypeText,
		DisplayText: task.FunctionKey,
	}
	if task.Args == "" {
		return msg
	}
	var args struct {
		RoomID      string `json:"room_id"`
		SenderID    string `json:"sender_id"`
		DisplayText string `json:"display_text"`
	}
	if err := json.Unmarshal([]byte(task.Args), &args); err != nil {
		return msg
	}
	if args.RoomID != "" {
		msg.RoomID = args.RoomID
	}
	if args.SenderID != "" {
		msg.SenderID = args.SenderID
	}
	if args.DisplayText != "" {
		msg.DisplayText = args.DisplayText
	}
	return msg
}
