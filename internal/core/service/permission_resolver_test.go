package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestPermissionResolver_Resolve(t *testing.T) {
	id := uuid.New()
	repo := &stubPermissionRepo{perms: map[uuid.UUID][]string{
		// Two roles granting an overlapping permission.
		id: {"client.get", "client.create", "client.get"},
	}}
	r := NewPermissionResolver(repo, ResolverOptions{}, zerolog.Nop())

	set, err := r.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := []string{"client.create", "client.get"}; !reflect.DeepEqual(set.Names(), want) {
		t.Fatalf("want %v, got %v", want, set.Names())
	}
	if set.IsWildcard() {
		t.Fatalf("regular account must not get the wildcard set")
	}
}

func TestPermissionResolver_NoRoles(t *testing.T) {
	repo := &stubPermissionRepo{perms: map[uuid.UUID][]string{}}
	r := NewPermissionResolver(repo, ResolverOptions{}, zerolog.Nop())
	id := uuid.New()

	set, err := r.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("expected empty set, got %v", set.Names())
	}

	ok, err := r.Authorize(context.Background(), id, nil)
	if err != nil || !ok {
		t.Fatalf("empty scope list must be satisfied, got %v %v", ok, err)
	}
	ok, _ = r.Authorize(context.Background(), id, []string{"user.get"})
	if ok {
		t.Fatalf("account without roles must not be authorized")
	}
}

func TestPermissionResolver_Superuser(t *testing.T) {
	super := uuid.New()
	repo := &stubPermissionRepo{err: errors.New("must not be called")}
	r := NewPermissionResolver(repo, ResolverOptions{SuperuserID: super}, zerolog.Nop())

	set, err := r.Resolve(context.Background(), super)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !set.IsWildcard() || !set.Has("anything.at.all") {
		t.Fatalf("expected wildcard set, got %v", set.Names())
	}

	ok, err := r.Authorize(context.Background(), super, []string{"user.remove", "role.create"})
	if err != nil || !ok {
		t.Fatalf("superuser must hold every scope, got %v %v", ok, err)
	}
	if repo.calls != 0 {
		t.Fatalf("superuser must not hit the repository, got %d calls", repo.calls)
	}
}

func TestPermissionResolver_NilSuperuserDisablesBypass(t *testing.T) {
	repo := &stubPermissionRepo{perms: map[uuid.UUID][]string{}}
	r := NewPermissionResolver(repo, ResolverOptions{SuperuserID: uuid.Nil}, zerolog.Nop())

	set, err := r.Resolve(context.Background(), uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if set.IsWildcard() {
		t.Fatalf("nil superuser id must not grant the wildcard set")
	}
}

func TestPermissionResolver_ConjunctiveScopes(t *testing.T) {
	id := uuid.New()
	repo := &stubPermissionRepo{perms: map[uuid.UUID][]string{id: {"a", "b"}}}
	r := NewPermissionResolver(repo, ResolverOptions{}, zerolog.Nop())

	tests := []struct {
		scopes []string
		want   bool
	}{
		{[]string{"a"}, true},
		{[]string{"a", "b"}, true},
		{[]string{"a", "c"}, false},
		{[]string{"c"}, false},
		{[]string{}, true},
	}
	for _, tt := range tests {
		got, err := r.Authorize(context.Background(), id, tt.scopes)
		if err != nil {
			t.Fatalf("authorize %v: %v", tt.scopes, err)
		}
		if got != tt.want {
			t.Errorf("authorize %v: want %v, got %v", tt.scopes, tt.want, got)
		}
	}
}

func TestPermissionResolver_ReadsLatestAssignments(t *testing.T) {
	id := uuid.New()
	repo := &stubPermissionRepo{perms: map[uuid.UUID][]string{id: {"a"}}}
	r := NewPermissionResolver(repo, ResolverOptions{}, zerolog.Nop())

	if ok, _ := r.Authorize(context.Background(), id, []string{"b"}); ok {
		t.Fatalf("b not granted yet")
	}
	repo.perms[id] = append(repo.perms[id], "b")
	if ok, _ := r.Authorize(context.Background(), id, []string{"b"}); !ok {
		t.Fatalf("grant must be visible on the next check")
	}
}

func TestPermissionResolver_RepositoryError(t *testing.T) {
	repo := &stubPermissionRepo{err: errors.New("db down")}
	r := NewPermissionResolver(repo, ResolverOptions{}, zerolog.Nop())

	if _, err := r.Authorize(context.Background(), uuid.New(), []string{"a"}); err == nil {
		t.Fatalf("expected error")
	}
}
