package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/clickrank/internal/domain/authz"
	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// mockFlags is a hand-written Flags double keyed by id and attribute.
type mockFlags struct {
	values map[string]bool
	err    error
	calls  int
}

func (m *mockFlags) Flag(_ context.Context, id string, attr types.Attribute) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.values[id+"/"+string(attr)], nil
}

func TestGateRequireAdmin(t *testing.T) {
	Convey("Given an authorization gate", t, func() {
		ctx := context.Background()
		flags := &mockFlags{values: map[string]bool{"u_admin/admin": true}}
		gate := authz.NewGate(flags)

		Convey("When the caller is an admin", func() {
			err := gate.RequireAdmin(ctx, "u_admin")

			Convey("Then access should be allowed", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the caller is not an admin", func() {
			err := gate.RequireAdmin(ctx, "u_plain")

			Convey("Then it should be forbidden, not validation or not found", func() {
				So(errors.Is(err, fault.ErrForbidden), ShouldBeTrue)
				So(errors.Is(err, fault.ErrValidation), ShouldBeFalse)
				So(errors.Is(err, fault.ErrNotFound), ShouldBeFalse)
				So(fault.Message(err), ShouldEqual, authz.MsgAdminOnly)
			})
		})

		Convey("When the store fails", func() {
			flags.err = fault.WrapKind("test", fault.ErrUpstream, errors.New("down"))
			err := gate.RequireAdmin(ctx, "u_admin")

			Convey("Then the failure should surface as upstream, never as allow", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, fault.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err, fault.ErrForbidden), ShouldBeFalse)
			})
		})

		Convey("When checking twice", func() {
			_ = gate.RequireAdmin(ctx, "u_admin")
			_ = gate.RequireAdmin(ctx, "u_admin")

			Convey("Then every decision should read fresh state", func() {
				So(flags.calls, ShouldEqual, 2)
			})
		})
	})
}

func TestGateRequireNotBanned(t *testing.T) {
	Convey("Given an authorization gate", t, func() {
		ctx := context.Background()
		flags := &mockFlags{values: map[string]bool{"u_bad/banned": true}}
		gate := authz.NewGate(flags)

		Convey("When the caller is banned", func() {
			err := gate.RequireNotBanned(ctx, "u_bad")

			Convey("Then it should be forbidden with the Banned message", func() {
				So(errors.Is(err, fault.ErrForbidden), ShouldBeTrue)
				So(fault.Message(err), ShouldEqual, authz.MsgBanned)
			})
		})

		Convey("When the caller is not banned", func() {
			So(gate.RequireNotBanned(ctx, "u_ok"), ShouldBeNil)
		})
	})
}
