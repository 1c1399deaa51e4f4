package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRuleRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertRule(&Rule{
		FunctionKey:     "lesson",
		Active:          true,
		Whitelist:       []string{"all"},
		Blacklist:       []string{"noisy@chatroom"},
		TypeFilter:      "1",
		RequiresMention: true,
		AIFlag:          true,
		Pattern:         `^课表`,
		ReplyText:       "one moment",
		CheckPermission: true,
		RequiredLevel:   2,
		Module:          "lesson",
	})
	if err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero rule id")
	}

	rule, err := s.GetRuleByFunction("lesson")
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if rule == nil {
		t.Fatal("expected rule, got nil")
	}
	if rule.Pattern != `^课表` || !rule.RequiresMention || !rule.AIFlag || rule.RequiredLevel != 2 {
		t.Fatalf("rule fields did not survive: %+v", rule)
	}
	if len(rule.Whitelist) != 1 || rule.Whitelist[0] != "all" {
		t.Fatalf("unexpected whitelist: %v", rule.Whitelist)
	}
	if len(rule.Blacklist) != 1 || rule.Blacklist[0] != "noisy@chatroom" {
		t.Fatalf("unexpected blacklist: %v", rule.Blacklist)
	}
}

func TestListActiveRulesOrderAndFilter(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.InsertRule(&Rule{FunctionKey: "a", Active: true, Pattern: "^a"})
	inactive, _ := s.InsertRule(&Rule{FunctionKey: "b", Active: false, Pattern: "^b"})
	second, _ := s.InsertRule(&Rule{FunctionKey: "c", Active: true, Pattern: "^c"})

	rules, err := s.ListActiveRules()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(rules))
	}
	if rules[0].ID != first || rules[1].ID != second {
		t.Fatalf("rules out of order: %d, %d", rules[0].ID, rules[1].ID)
	}

	if err := s.SetRuleActive(inactive, true); err != nil {
		t.Fatalf("enable rule: %v", err)
	}
	rules, _ = s.ListActiveRules()
	if len(rules) != 3 {
		t.Fatalf("expected 3 active rules after enable, got %d", len(rules))
	}

	if err := s.DeleteRule(first); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	rules, _ = s.ListActiveRules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules after delete, got %d", len(rules))
	}
}

func TestGetRuleMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	rule, err := s.GetRuleByFunction("nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule != nil {
		t.Fatalf("expected nil rule, got %+v", rule)
	}
}

func TestMemberUpsertAndScore(t *testing.T) {
	s := newTestStore(t)

	m := &Member{Key: "alice#g@chatroom", Name: "alice", Level: 3, Modules: []string{"lesson", "manage"}, Score: 10}
	if err := s.UpsertMember(m); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetMember("alice#g@chatroom")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got == nil || got.Level != 3 || len(got.Modules) != 2 {
		t.Fatalf("unexpected member: %+v", got)
	}

	m.Level = 5
	if err := s.UpsertMember(m); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = s.GetMember("alice#g@chatroom")
	if got.Level != 5 {
		t.Fatalf("expected level 5 after upsert, got %d", got.Level)
	}

	if err := s.AdjustScore("alice#g@chatroom", -4); err != nil {
		t.Fatalf("adjust score: %v", err)
	}
	got, _ = s.GetMember("alice#g@chatroom")
	if got.Score != 6 {
		t.Fatalf("expected score 6, got %v", got.Score)
	}

	if err := s.AdjustScore("nobody", 1); err == nil {
		t.Fatal("expected error adjusting score of missing member")
	}

	missing, err := s.GetMember("nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected nil member, got %+v err %v", missing, err)
	}
}

func TestScheduledTaskLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertScheduledTask(&ScheduledTask{FunctionKey: "report", CronExpr: "0 8 * * *", OneOff: false})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	once, err := s.InsertScheduledTask(&ScheduledTask{FunctionKey: "notice", CronExpr: "30 9 1 1 *", OneOff: true})
	if err != nil {
		t.Fatalf("insert one-off: %v", err)
	}

	tasks, err := s.ListOpenTasks()
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 open tasks, got %d", len(tasks))
	}

	now := time.Now()
	if err := s.MarkTaskFired(id, now, false); err != nil {
		t.Fatalf("mark fired: %v", err)
	}
	if err := s.MarkTaskFired(once, now, true); err != nil {
		t.Fatalf("mark one-off fired: %v", err)
	}

	tasks, _ = s.ListOpenTasks()
	if len(tasks) != 1 {
		t.Fatalf("expected one open task after one-off consumed, got %d", len(tasks))
	}
	if tasks[0].ID != id {
		t.Fatalf("wrong surviving task: %d", tasks[0].ID)
	}
	if tasks[0].LastFiredAt == nil {
		t.Fatal("expected last_fired_at to be set")
	}
}
