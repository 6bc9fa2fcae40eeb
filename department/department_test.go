package department

import (
	"context"
	"errors"
	"testing"

	"github.com/GoCodeAlone/roster/internal/storage"
	"github.com/GoCodeAlone/roster/task"
)

var _ task.Directory = (*SQLiteStore)(nil)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func TestSQLiteStore_CreateGetList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ops, err := s.Create(ctx, "  Operations ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ops.ID == 0 || ops.Name != "Operations" {
		t.Errorf("Create = %+v", ops)
	}
	if _, err := s.Create(ctx, "Audit"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, ops.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Operations" {
		t.Errorf("Get name = %q", got.Name)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Audit" || list[1].Name != "Operations" {
		t.Errorf("List = %+v, want [Audit Operations]", list)
	}
}

func TestSQLiteStore_CreateErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, " "); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank name: err = %v, want ErrInvalid", err)
	}
	if _, err := s.Create(ctx, "Finance"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, "Finance"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate: err = %v, want ErrDuplicate", err)
	}
}

func TestSQLiteStore_Exists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.Create(ctx, "HR")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, err := s.Exists(ctx, d.ID); err != nil || !ok {
		t.Errorf("Exists(%d) = %v, %v; want true", d.ID, ok, err)
	}
	if ok, err := s.Exists(ctx, 99); err != nil || ok {
		t.Errorf("Exists(99) = %v, %v; want false", ok, err)
	}
	if _, err := s.Get(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(99): err = %v, want ErrNotFound", err)
	}
}
