package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/procwarden/internal/infrastructure/database"
	_ "github.com/nerrad567/procwarden/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	log := &AuditLog{
		Action:     "process.started",
		EntityType: EntityProcess,
		EntityID:   "4242",
		Source:     SourceAPI,
		Details:    map[string]any{"name": "worker-1"},
	}
	if err := repo.Create(ctx, log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(log.ID) <= len("aud-") || log.ID[:4] != "aud-" {
		t.Errorf("ID = %q, want aud- prefix", log.ID)
	}
	if log.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Logs) != 1 {
		t.Fatalf("List() total = %d, len = %d, want 1", res.Total, len(res.Logs))
	}
	got := res.Logs[0]
	if got.ID != log.ID || got.EntityID != "4242" || got.Source != SourceAPI {
		t.Errorf("List()[0] = %+v", got)
	}
	if got.Details["name"] != "worker-1" {
		t.Errorf("Details = %v, want name=worker-1", got.Details)
	}
	if got.UserID != "" {
		t.Errorf("UserID = %q, want empty", got.UserID)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{Action: "process.started", EntityType: EntityProcess, EntityID: "1", Source: SourceAPI, CreatedAt: base},
		{Action: "process.stopped", EntityType: EntityProcess, EntityID: "1", Source: SourceAPI, CreatedAt: base.Add(time.Minute)},
		{Action: "process.started", EntityType: EntityProcess, EntityID: "2", Source: SourceMQTT, CreatedAt: base.Add(2 * time.Minute)},
		{Action: "process.stop_all", EntityType: EntitySupervisor, Source: SourceSupervisor, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string // entity ids in returned order
	}{
		{"all newest first", Filter{}, []string{"", "2", "1", "1"}},
		{"by action", Filter{Action: "process.started"}, []string{"2", "1"}},
		{"by entity", Filter{EntityType: EntityProcess, EntityID: "1"}, []string{"1", "1"}},
		{"since", Filter{Since: base.Add(2 * time.Minute)}, []string{"", "2"}},
		{"paged", Filter{Limit: 2, Offset: 1}, []string{"2", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(res.Logs) != len(tt.wantIDs) {
				t.Fatalf("len(Logs) = %d, want %d", len(res.Logs), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if res.Logs[i].EntityID != want {
					t.Errorf("Logs[%d].EntityID = %q, want %q", i, res.Logs[i].EntityID, want)
				}
			}
		})
	}
}

func TestList_Clamp(t *testing.T) {
	tests := []struct {
		in        Filter
		wantLimit int
		wantOff   int
	}{
		{Filter{}, defaultLimit, 0},
		{Filter{Limit: 10}, 10, 0},
		{Filter{Limit: 5000}, maxLimit, 0},
		{Filter{Limit: 10, Offset: -3}, 10, 0},
	}
	for _, tt := range tests {
		got := clamp(tt.in)
		if got.Limit != tt.wantLimit || got.Offset != tt.wantOff {
			t.Errorf("clamp(%+v) = limit %d offset %d, want %d %d",
				tt.in, got.Limit, got.Offset, tt.wantLimit, tt.wantOff)
		}
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &AuditLog{Action: "process.started", EntityType: EntityProcess, Source: SourceAPI, CreatedAt: now.Add(-48 * time.Hour)}
	recent := &AuditLog{Action: "process.stopped", EntityType: EntityProcess, Source: SourceAPI, CreatedAt: now}
	for _, l := range []*AuditLog{old, recent} {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Logs[0].ID != recent.ID {
		t.Errorf("remaining = %+v, want only the recent entry", res.Logs)
	}
}
