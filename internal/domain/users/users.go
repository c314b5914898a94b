// Package users reads and writes the per-user attribute hash, hiding the
// legacy dual-cased flag keys behind logical attributes.
package users

import (
	"context"
	"strings"

	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/types"
	"golang.org/x/sync/errgroup"
)

// Store is the subset of store operations the accessor needs.
type Store interface {
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
}

// variants lists the physical hash fields for each logical attribute in
// lookup order. The capitalised form was written by older deployments.
var variants = map[types.Attribute][]string{
	types.AttrName:   {"name"},
	types.AttrAdmin:  {"Admin", "admin"},
	types.AttrBanned: {"Banned", "banned"},
}

// Variants returns the physical fields backing attr, in lookup order.
func Variants(attr types.Attribute) []string {
	if v, ok := variants[attr]; ok {
		return v
	}
	return []string{string(attr)}
}

// IsTruthy reports whether a stored flag value means true.
func IsTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}

// Accessor reads and writes user records.
type Accessor struct {
	store Store
}

// NewAccessor returns an Accessor over store.
func NewAccessor(store Store) *Accessor {
	return &Accessor{store: store}
}

// GetAttribute returns the first present physical variant of attr.
func (a *Accessor) GetAttribute(ctx context.Context, id string, attr types.Attribute) (string, bool, error) {
	const op = "users.get_attribute"
	key := types.UserKey(id)
	for _, field := range Variants(attr) {
		v, ok, err := a.store.HGet(ctx, key, field)
		if err != nil {
			return "", false, fault.Wrap(op, err)
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Flag resolves one boolean attribute. Absent means false.
func (a *Accessor) Flag(ctx context.Context, id string, attr types.Attribute) (bool, error) {
	v, _, err := a.GetAttribute(ctx, id, attr)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// GetFlags resolves admin and banned with concurrent reads.
func (a *Accessor) GetFlags(ctx context.Context, id string) (types.Flags, error) {
	var (
		flags types.Flags
		g     errgroup.Group
	)
	g.Go(func() error {
		v, err := a.Flag(ctx, id, types.AttrAdmin)
		flags.Admin = v
		return err
	})
	g.Go(func() error {
		v, err := a.Flag(ctx, id, types.AttrBanned)
		flags.Banned = v
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Flags{}, err
	}
	return flags, nil
}

// Name returns the stored display name, or "" if none was set.
func (a *Accessor) Name(ctx context.Context, id string) (string, error) {
	v, _, err := a.GetAttribute(ctx, id, types.AttrName)
	return v, err
}

// Profile returns the caller's name and flags.
func (a *Accessor) Profile(ctx context.Context, id string) (types.Profile, error) {
	var (
		name  string
		flags types.Flags
		g     errgroup.Group
	)
	g.Go(func() error {
		var err error
		name, err = a.Name(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		flags, err = a.GetFlags(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Profile{}, err
	}
	return types.Profile{ID: id, Name: name, Admin: flags.Admin, Banned: flags.Banned}, nil
}

// SetName writes an already normalized name.
func (a *Accessor) SetName(ctx context.Context, id, name string) error {
	const op = "users.set_name"
	return fault.Wrap(op, a.store.HSet(ctx, types.UserKey(id), map[string]string{"name": name}))
}

// SetFlag writes every physical variant of attr in a single HSET.
func (a *Accessor) SetFlag(ctx context.Context, id string, attr types.Attribute, value bool) error {
	const op = "users.set_flag"
	v := "false"
	if value {
		v = "true"
	}
	fields := make(map[string]string, 2)
	for _, f := range Variants(attr) {
		fields[f] = v
	}
	return fault.Wrap(op, a.store.HSet(ctx, types.UserKey(id), fields))
}

// EnsureDefaultName sets the default name unless one exists.
func (a *Accessor) EnsureDefaultName(ctx context.Context, id string) error {
	const op = "users.ensure_default_name"
	_, err := a.store.HSetNX(ctx, types.UserKey(id), "name", types.DefaultName)
	return fault.Wrap(op, err)
}
