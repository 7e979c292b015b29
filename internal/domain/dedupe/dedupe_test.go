package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/exposurerisk/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When a run ID is new", func() {
			seen := d.SeenAndRecord(ctx, "run-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a run ID is submitted twice", func() {
			d.SeenAndRecord(ctx, "run-1")
			seen := d.SeenAndRecord(ctx, "run-1")

			Convey("Then the second submission is a duplicate", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a recorded run ID is unrecorded", func() {
			d.SeenAndRecord(ctx, "run-1")
			d.Unrecord(ctx, "run-1")

			Convey("Then it can be submitted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "run-1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown run ID is unrecorded", func() {
			d.Unrecord(ctx, "nonexistent")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a deduper bounded to three IDs", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"run-1", "run-2", "run-3", "run-4"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("Then the oldest ID is forgotten first", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "run-4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "run-3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "run-2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "run-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		const n = 1000
		for i := 0; i < n; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("run-%d", i))
		}

		Convey("Then every ID is kept", func() {
			So(d.Size(), ShouldEqual, int64(n))
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("run-%d", i)), ShouldBeTrue)
			}
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines, perGoroutine = 10, 100

		Convey("When the same IDs race from many goroutines", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			firsts := 0
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("run-%d", j)) {
							mu.Lock()
							firsts++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each ID is new exactly once", func() {
				So(firsts, ShouldEqual, perGoroutine)
				So(d.Size(), ShouldEqual, int64(perGoroutine))
			})
		})
	})
}
