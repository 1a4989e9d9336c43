package domain

import (
	"sort"

	"github.com/google/uuid"
)

// Role is a named bundle of permissions assignable to accounts.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Permission is a named capability, e.g. "client.create".
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// PermissionSet is the effective permission set of an account. The zero
// value is an empty set. A wildcard set contains every permission.
type PermissionSet struct {
	all   bool
	names map[string]struct{}
}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names ...string) PermissionSet {
	set := PermissionSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		set.names[n] = struct{}{}
	}
	return set
}

// AllPermissions returns the wildcard set used for the superuser.
func AllPermissions() PermissionSet {
	return PermissionSet{all: true}
}

func (p PermissionSet) IsWildcard() bool { return p.all }

// Has reports whether a single permission is granted.
func (p PermissionSet) Has(name string) bool {
	if p.all {
		return true
	}
	_, ok := p.names[name]
	return ok
}

// Contains reports whether every given scope is granted. An empty scope
// list is always satisfied.
func (p PermissionSet) Contains(scopes ...string) bool {
	for _, s := range scopes {
		if !p.Has(s) {
			return false
		}
	}
	return true
}

// Names returns the granted permission names in sorted order. The wildcard
// set renders as ["*"].
func (p PermissionSet) Names() []string {
	if p.all {
		return []string{"*"}
	}
	out := make([]string, 0, len(p.names))
	for n := range p.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (p PermissionSet) Len() int {
	return len(p.names)
}
