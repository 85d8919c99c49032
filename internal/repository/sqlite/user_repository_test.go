package sqlite

import (
	"context"
	"errors"
	"testing"

	"acquisitions-api/internal/domain"
	"acquisitions-api/internal/repository"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewUserRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init repo: %v", err)
	}
	return repo
}

func TestUserRepository_CRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.User{
		Name:         "Alice",
		Email:        "alice@x.com",
		Role:         domain.RoleUser,
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("unexpected created user: %+v", created)
	}

	byID, err := repo.GetByID(ctx, created.ID)
	if err != nil || byID.Email != "alice@x.com" {
		t.Fatalf("get by id: %v %+v", err, byID)
	}

	byEmail, err := repo.GetByEmail(ctx, "alice@x.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("get by email: %v %+v", err, byEmail)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}

	byID.Name = "Alice Cooper"
	byID.Role = domain.RoleAdmin
	updated, err := repo.Update(ctx, byID)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Alice Cooper" || updated.Role != domain.RoleAdmin {
		t.Fatalf("update not applied: %+v", updated)
	}
	if !updated.UpdatedAt.After(created.CreatedAt) && !updated.UpdatedAt.Equal(created.CreatedAt) {
		t.Fatalf("updated_at not bumped: %+v", updated)
	}

	deleted, err := repo.Delete(ctx, created.ID)
	if err != nil || deleted.Email != "alice@x.com" {
		t.Fatalf("delete: %v %+v", err, deleted)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, &domain.User{Name: "Alice", Email: "alice@x.com", Role: domain.RoleUser, PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := repo.Create(ctx, &domain.User{Name: "Other", Email: "alice@x.com", Role: domain.RoleUser, PasswordHash: "h"})
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	bob, err := repo.Create(ctx, &domain.User{Name: "Bob", Email: "bob@x.com", Role: domain.RoleUser, PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	bob.Email = "alice@x.com"
	if _, err := repo.Update(ctx, bob); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail on update, got %v", err)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 42); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get by id: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get by email: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Delete(ctx, 42); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Update(ctx, &domain.User{ID: 42, Name: "Ghost", Email: "g@x.com", Role: domain.RoleUser, PasswordHash: "h"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_EmailCaseSensitive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, &domain.User{Name: "Alice", Email: "Alice@x.com", Role: domain.RoleUser, PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.GetByEmail(ctx, "alice@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("lookup must match the stored casing exactly, got %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "Alice@x.com"); err != nil {
		t.Fatalf("exact-case lookup failed: %v", err)
	}
}
