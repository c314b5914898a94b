// Package authz turns a caller's stored flags into allow/deny decisions.
package authz

import (
	"context"

	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/types"
	"github.com/okian/clickrank/pkg/metrics"
)

// Public denial messages.
const (
	MsgAdminOnly = "Forbidden: Admin only"
	MsgBanned    = "Banned"
)

// Flags resolves one boolean attribute of a user.
type Flags interface {
	Flag(ctx context.Context, id string, attr types.Attribute) (bool, error)
}

// Gate enforces admin and ban checks. Every decision reads the store; a
// read failure is returned as an error and never treated as allow.
type Gate struct {
	flags Flags
}

// NewGate returns a Gate.
func NewGate(flags Flags) *Gate {
	return &Gate{flags: flags}
}

// RequireAdmin returns nil if id holds the admin flag.
func (g *Gate) RequireAdmin(ctx context.Context, id string) error {
	const op = "authz.require_admin"
	admin, err := g.flags.Flag(ctx, id, types.AttrAdmin)
	if err != nil {
		return fault.Wrap(op, err)
	}
	if !admin {
		metrics.RecordForbidden("not_admin")
		return fault.Forbidden(op, MsgAdminOnly)
	}
	return nil
}

// RequireNotBanned returns nil unless id holds the banned flag.
func (g *Gate) RequireNotBanned(ctx context.Context, id string) error {
	const op = "authz.require_not_banned"
	banned, err := g.flags.Flag(ctx, id, types.AttrBanned)
	if err != nil {
		return fault.Wrap(op, err)
	}
	if banned {
		metrics.RecordForbidden("banned")
		return fault.Forbidden(op, MsgBanned)
	}
	return nil
}
