package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/clickrank/internal/domain/fault"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKinds(t *testing.T) {
	Convey("Given kinded errors", t, func() {
		Convey("When a validation error is created", func() {
			err := fault.Validation("counter.set", "Invalid value")

			Convey("Then it matches the validation kind only", func() {
				So(errors.Is(err, fault.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, fault.ErrForbidden), ShouldBeFalse)
				So(fault.Message(err), ShouldEqual, "Invalid value")
			})
		})

		Convey("When an upstream cause is wrapped", func() {
			cause := errors.New("dial tcp: connection refused")
			err := fault.WrapKind("store.get", fault.ErrUpstream, cause)

			Convey("Then both the kind and the cause are reachable", func() {
				So(errors.Is(err, fault.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "connection refused")
			})
		})

		Convey("When a kinded error is re-wrapped", func() {
			inner := fault.Forbidden("authz.admin", "Forbidden: Admin only")
			err := fault.Wrap("api.stats", inner)

			Convey("Then the kind and public message survive", func() {
				So(fault.KindOf(err), ShouldEqual, fault.ErrForbidden)
				So(fault.Message(err), ShouldEqual, "Forbidden: Admin only")
			})
		})

		Convey("When a plain error is wrapped", func() {
			err := fault.Wrap("app.me", fmt.Errorf("boom"))

			Convey("Then it is classified as internal with no public message", func() {
				So(fault.KindOf(err), ShouldEqual, fault.ErrInternal)
				So(fault.Message(err), ShouldBeEmpty)
			})
		})

		Convey("When nil is wrapped", func() {
			So(fault.Wrap("op", nil), ShouldBeNil)
			So(fault.WrapKind("op", fault.ErrUpstream, nil), ShouldBeNil)
		})
	})
}
