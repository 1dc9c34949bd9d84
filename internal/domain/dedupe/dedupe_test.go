package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/foursigma/foursigma/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a key is claimed for the first time", func() {
			claimed := d.Claim(ctx, "submit:1:4")

			Convey("Then the claim succeeds and is held", func() {
				So(claimed, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And claiming it again fails", func() {
				So(d.Claim(ctx, "submit:1:4"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And after release it can be claimed again", func() {
				d.Release(ctx, "submit:1:4")
				So(d.Size(), ShouldEqual, 0)
				So(d.Claim(ctx, "submit:1:4"), ShouldBeTrue)
			})
		})

		Convey("When releasing a key that was never claimed", func() {
			d.Claim(ctx, "finish:1")
			d.Release(ctx, "finish:2")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			So(d.Claim(ctx, fmt.Sprintf("k%d", i)), ShouldBeTrue)
		}

		Convey("When another key is claimed", func() {
			So(d.Claim(ctx, "k4"), ShouldBeTrue)

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Claim(ctx, "k1"), ShouldBeTrue)
				So(d.Claim(ctx, "k3"), ShouldBeFalse)
				So(d.Claim(ctx, "k4"), ShouldBeFalse)
			})
		})

		Convey("When a middle key is released and a new one claimed", func() {
			d.Release(ctx, "k2")
			So(d.Claim(ctx, "k5"), ShouldBeTrue)

			Convey("Then no eviction was needed", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Claim(ctx, "k1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.Claim(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("Then every key is kept", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.Claim(ctx, "k0"), ShouldBeFalse)
		})
	})
}

func TestInMemoryDeduperConcurrent(t *testing.T) {
	Convey("Given many goroutines racing for the same keys", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wins atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if d.Claim(context.Background(), fmt.Sprintf("key-%d", i)) {
						wins.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is claimed exactly once", func() {
			So(wins.Load(), ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
