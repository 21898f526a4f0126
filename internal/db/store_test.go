package db_test

import (
	"errors"
	"testing"
	"time"

	"github.com/g960059/cliprelay/internal/db"
	"github.com/g960059/cliprelay/internal/model"
	"github.com/g960059/cliprelay/internal/testutil"
)

func TestRecordAndListEventsNewestFirst(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []model.MailboxEvent{
		{InstanceID: "inst", Op: model.OpWrite, Version: 1, SizeBytes: 5, At: base},
		{InstanceID: "inst", Op: model.OpRead, Version: 1, SizeBytes: 5, At: base.Add(300 * time.Millisecond)},
		{InstanceID: "inst", Op: model.OpWrite, Version: 2, SizeBytes: 0, At: base.Add(time.Second)},
	}
	for _, ev := range events {
		if err := store.RecordEvent(ctx, ev); err != nil {
			t.Fatalf("record event: %v", err)
		}
	}

	got, err := store.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Version != 2 || got[0].Op != model.OpWrite {
		t.Fatalf("expected newest write v2 first, got %+v", got[0])
	}
	if got[1].Op != model.OpRead || !got[1].At.Equal(base.Add(300*time.Millisecond)) {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
	if got[2].EventID == "" {
		t.Fatalf("expected generated event id")
	}

	limited, err := store.ListEvents(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 event, got %d", len(limited))
	}
}

func TestRecordEventRejectsInvalidOp(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	err := store.RecordEvent(ctx, model.MailboxEvent{InstanceID: "inst", Op: "peek"})
	if !errors.Is(err, db.ErrInvalidOp) {
		t.Fatalf("expected ErrInvalidOp, got %v", err)
	}
}

func TestRecordEventDuplicateID(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ev := model.MailboxEvent{EventID: "fixed", InstanceID: "inst", Op: model.OpWrite, Version: 1}
	if err := store.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := store.RecordEvent(ctx, ev); !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPurgeBefore(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	now := time.Now().UTC()
	old := model.MailboxEvent{InstanceID: "inst", Op: model.OpWrite, Version: 1, At: now.Add(-8 * 24 * time.Hour)}
	fresh := model.MailboxEvent{InstanceID: "inst", Op: model.OpWrite, Version: 2, At: now}
	for _, ev := range []model.MailboxEvent{old, fresh} {
		if err := store.RecordEvent(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	n, err := store.PurgeBefore(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged row, got %d", n)
	}
	count, err := store.CountEvents(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining row, got %d", count)
	}
}
