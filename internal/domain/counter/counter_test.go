package counter_test

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/clickrank/internal/adapters/repository"
	"github.com/okian/clickrank/internal/domain/counter"
	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newEngine(t *testing.T) (*counter.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := repository.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return counter.New(store), mr
}

func TestCounterRead(t *testing.T) {
	Convey("Given a counter engine", t, func() {
		ctx := context.Background()
		eng, mr := newEngine(t)

		Convey("When the counter is unset", func() {
			n, err := eng.Read(ctx)

			Convey("Then it should read zero", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(0))
			})
		})

		Convey("When the stored value is not numeric", func() {
			So(mr.Set("global_count", "garbage"), ShouldBeNil)
			n, err := eng.Read(ctx)

			Convey("Then it should read zero", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(0))
			})
		})

		Convey("When the stored value is fractional", func() {
			So(mr.Set("global_count", "5.5"), ShouldBeNil)
			n, err := eng.Read(ctx)

			Convey("Then it should read the floored number", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(5))
			})
		})

		Convey("When the stored value is numeric but not finite", func() {
			for _, v := range []string{"NaN", "Inf", "-Infinity"} {
				So(mr.Set("global_count", v), ShouldBeNil)
				n, err := eng.Read(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(0))
			}
		})
	})
}

func TestCounterIncrement(t *testing.T) {
	Convey("Given a counter engine", t, func() {
		ctx := context.Background()
		eng, _ := newEngine(t)

		Convey("When incrementing concurrently", func() {
			const n = 100
			var wg sync.WaitGroup
			wg.Add(n)
			for i := 0; i < n; i++ {
				go func() {
					defer wg.Done()
					_, _ = eng.Increment(ctx)
				}()
			}
			wg.Wait()

			Convey("Then no increment should be lost", func() {
				v, err := eng.Read(ctx)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, n)
			})
		})
	})
}

func TestCounterAdminSet(t *testing.T) {
	Convey("Given a counter engine", t, func() {
		ctx := context.Background()
		eng, _ := newEngine(t)

		Convey("When setting a fractional value", func() {
			v, err := eng.AdminSet(ctx, 41.9)

			Convey("Then it should be floored and stored", func() {
				So(err, ShouldBeNil)
				So(v, ShouldEqual, int64(41))
				got, _ := eng.Read(ctx)
				So(got, ShouldEqual, int64(41))
			})
		})

		Convey("When setting the bounds", func() {
			_, errLow := eng.AdminSet(ctx, 0)
			_, errHigh := eng.AdminSet(ctx, counter.MaxValue)

			Convey("Then both should be accepted", func() {
				So(errLow, ShouldBeNil)
				So(errHigh, ShouldBeNil)
			})
		})

		Convey("When setting invalid values", func() {
			So(eng.Reset(ctx), ShouldBeNil)
			for _, bad := range []float64{-1, -0.5, counter.MaxValue + 1, math.NaN(), math.Inf(1)} {
				_, err := eng.AdminSet(ctx, bad)
				So(errors.Is(err, fault.ErrValidation), ShouldBeTrue)
				So(fault.Message(err), ShouldEqual, counter.MsgInvalidValue)
			}

			Convey("Then the counter should be untouched", func() {
				got, _ := eng.Read(ctx)
				So(got, ShouldEqual, int64(0))
			})
		})
	})
}

func TestCounterAdminAdd(t *testing.T) {
	Convey("Given a counter at 10", t, func() {
		ctx := context.Background()
		eng, _ := newEngine(t)
		_, err := eng.AdminSet(ctx, 10)
		So(err, ShouldBeNil)

		Convey("When adding a positive delta", func() {
			v, err := eng.AdminAdd(ctx, 5.7)

			Convey("Then the floored delta should be added", func() {
				So(err, ShouldBeNil)
				So(v, ShouldEqual, int64(15))
			})
		})

		Convey("When adding non-positive deltas", func() {
			for _, bad := range []float64{0, 0.9, -3, math.NaN(), math.Inf(1)} {
				_, err := eng.AdminAdd(ctx, bad)
				So(errors.Is(err, fault.ErrValidation), ShouldBeTrue)
				So(fault.Message(err), ShouldEqual, counter.MsgPositiveDelta)
			}

			Convey("Then the counter should be untouched", func() {
				got, _ := eng.Read(ctx)
				So(got, ShouldEqual, int64(10))
			})
		})

		Convey("When resetting", func() {
			So(eng.Reset(ctx), ShouldBeNil)

			Convey("Then the counter should be zero", func() {
				got, _ := eng.Read(ctx)
				So(got, ShouldEqual, int64(0))
			})
		})
	})
}
