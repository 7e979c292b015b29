package scoring_test

import (
	"encoding/json"
	"math"
	"testing"

	scoring "github.com/okian/exposurerisk/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRiskRange_Contains(t *testing.T) {
	Convey("Given ranges with every bound combination", t, func() {
		ranges := []scoring.RiskRange{
			{Min: 0, Max: 10},
			{Min: 0, Max: 10, MinExclusive: true},
			{Min: 0, Max: 10, MaxExclusive: true},
			{Min: 0, Max: 10, MinExclusive: true, MaxExclusive: true},
		}

		Convey("Then the bounds are included exactly when not exclusive", func() {
			for _, r := range ranges {
				So(r.Contains(r.Min), ShouldEqual, !r.MinExclusive)
				So(r.Contains(r.Max), ShouldEqual, !r.MaxExclusive)
				So(r.Contains(5), ShouldBeTrue)
				So(r.Contains(-0.001), ShouldBeFalse)
				So(r.Contains(10.001), ShouldBeFalse)
			}
		})
	})

	Convey("Given a degenerate closed range", t, func() {
		r := scoring.RiskRange{Min: 3, Max: 3}

		Convey("Then it contains only its single point", func() {
			So(r.Contains(3), ShouldBeTrue)
			So(r.Contains(2.999), ShouldBeFalse)
		})
	})
}

func TestFirstMatch(t *testing.T) {
	Convey("Given overlapping ranged entries", t, func() {
		entries := []scoring.Ranged[string]{
			{Range: scoring.RiskRange{Min: 0, Max: 10}, Value: "first"},
			{Range: scoring.RiskRange{Min: 5, Max: 20}, Value: "second"},
		}

		Convey("When the value is in both", func() {
			v, ok := scoring.FirstMatch(entries, 7)

			Convey("Then the first configured entry wins", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "first")
			})
		})

		Convey("When the value is only in the second", func() {
			v, ok := scoring.FirstMatch(entries, 15)

			Convey("Then the second entry matches", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "second")
			})
		})

		Convey("When no range contains the value", func() {
			v, ok := scoring.FirstMatch(entries, 25)

			Convey("Then nothing matches", func() {
				So(ok, ShouldBeFalse)
				So(v, ShouldEqual, "")
			})
		})
	})
}

func TestRiskRange_Overlaps(t *testing.T) {
	Convey("Given pairs of ranges", t, func() {
		Convey("Then touching half-open ranges do not overlap", func() {
			a := scoring.RiskRange{Min: 0, Max: 1, MaxExclusive: true}
			b := scoring.RiskRange{Min: 1, Max: 2}
			So(a.Overlaps(b), ShouldBeFalse)
			So(b.Overlaps(a), ShouldBeFalse)
		})

		Convey("And touching closed ranges do overlap", func() {
			a := scoring.RiskRange{Min: 0, Max: 1}
			b := scoring.RiskRange{Min: 1, Max: 2}
			So(a.Overlaps(b), ShouldBeTrue)
		})

		Convey("And a contained range overlaps its container", func() {
			a := scoring.RiskRange{Min: 0, Max: 10}
			b := scoring.RiskRange{Min: 2, Max: 3, MinExclusive: true, MaxExclusive: true}
			So(a.Overlaps(b), ShouldBeTrue)
			So(b.Overlaps(a), ShouldBeTrue)
		})

		Convey("And disjoint ranges do not overlap", func() {
			a := scoring.RiskRange{Min: 0, Max: 55}
			b := scoring.RiskRange{Min: 55, Max: 63, MinExclusive: true}
			So(a.Overlaps(b), ShouldBeFalse)
		})
	})
}

func TestRiskRange_String(t *testing.T) {
	Convey("Given a half-open range", t, func() {
		r := scoring.RiskRange{Min: 0, Max: 55, MaxExclusive: true}

		Convey("Then it renders in interval notation", func() {
			So(r.String(), ShouldEqual, "[0, 55)")
		})
	})
}

func TestRiskRange_JSON(t *testing.T) {
	Convey("Given a range with no upper bound", t, func() {
		r := scoring.RiskRange{Min: 1, Max: math.Inf(1)}

		Convey("When it is encoded", func() {
			b, err := json.Marshal(r)

			Convey("Then the missing bound is written as null", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"min":1,"max":null,"min_exclusive":false,"max_exclusive":false}`)
			})

			Convey("Then decoding restores the infinite bound", func() {
				var back scoring.RiskRange
				So(json.Unmarshal(b, &back), ShouldBeNil)
				So(math.IsInf(back.Max, 1), ShouldBeTrue)
				So(back.Min, ShouldEqual, 1)
				So(back.Contains(1e12), ShouldBeTrue)
			})
		})
	})

	Convey("Given a range with no lower bound", t, func() {
		b, err := json.Marshal(scoring.RiskRange{Min: math.Inf(-1), Max: 5, MaxExclusive: true})
		So(err, ShouldBeNil)

		Convey("When it is decoded", func() {
			var back scoring.RiskRange
			So(json.Unmarshal(b, &back), ShouldBeNil)

			Convey("Then the lower bound is negative infinity", func() {
				So(math.IsInf(back.Min, -1), ShouldBeTrue)
				So(back.Max, ShouldEqual, 5)
				So(back.MaxExclusive, ShouldBeTrue)
			})
		})
	})

	Convey("Given a document with omitted bounds", t, func() {
		var r scoring.RiskRange
		err := json.Unmarshal([]byte(`{"max":3}`), &r)

		Convey("Then the omitted bound stays zero", func() {
			So(err, ShouldBeNil)
			So(r, ShouldResemble, scoring.RiskRange{Min: 0, Max: 3})
		})
	})
}
