package config_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/okian/exposurerisk/internal/config"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

const overlappingScoring = `
version: broken
transmission_risk_level_multiplier: 0.2
minutes_at_attenuation_weights:
  - attenuation_range: {min: 0, max: 60}
    weight: 1
  - attenuation_range: {min: 55, max: 70}
    weight: 0.5
normalized_time_per_ew_to_risk_level_mapping:
  - normalized_time_range: {min: 0, max: 9999}
    risk_level: low
`

func scoringDoc(version string) string {
	return `
version: ` + version + `
trl_encoding:
  infectiousness_offset_standard: 1
  infectiousness_offset_high: 2
  report_type_offset_confirmed_test: 3
transmission_risk_level_multiplier: 0.5
minutes_at_attenuation_weights:
  - attenuation_range: {min: 0, max: 55}
    weight: 1
normalized_time_per_ew_to_risk_level_mapping:
  - normalized_time_range: {min: 0, max: 10, max_exclusive: true}
    risk_level: low
  - normalized_time_range: {min: 10, max: 9999}
    risk_level: high
aggregation_rule: any_high
`
}

const unboundedScoring = `
version: unbounded
transmission_risk_level_multiplier: 0.2
minutes_at_attenuation_weights:
  - attenuation_range: {min: 0, max: .inf}
    weight: 1
normalized_time_per_ew_to_risk_level_mapping:
  - normalized_time_range: {min: 0, max: 15, max_exclusive: true}
    risk_level: low
  - normalized_time_range: {min: 15, max: .inf}
    risk_level: high
`

func TestLoadScoring(t *testing.T) {
	convey.Convey("Given scoring configuration files", t, func() {
		ctx := context.Background()

		convey.Convey("When no path is given", func() {
			cfg, err := config.LoadScoring(ctx, "")

			convey.Convey("Then the built-in configuration is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Version(), convey.ShouldEqual, "builtin-1")
			})
		})

		convey.Convey("When the shipped configs/scoring.yaml is loaded", func() {
			cfg, err := config.LoadScoring(ctx, "../../configs/scoring.yaml")

			convey.Convey("Then it matches the built-in configuration", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Document(), convey.ShouldResemble, scoring.Default().Document())
			})
		})

		convey.Convey("When a partial document is loaded", func() {
			cfg, err := config.LoadScoring(ctx, writeFile(t, "scoring.yaml", scoringDoc("v7")))

			convey.Convey("Then omitted sections take their zero values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Version(), convey.ShouldEqual, "v7")
				convey.So(cfg.TRLEncoding().ReportTypeOffsetRecursive, convey.ShouldEqual, 0)
				convey.So(cfg.TRLEncoding().ReportTypeOffsetConfirmedTest, convey.ShouldEqual, 3)
				convey.So(cfg.TransmissionRiskLevelMultiplier(), convey.ShouldEqual, 0.5)
				convey.So(cfg.AggregationRule(), convey.ShouldEqual, scoring.RuleAnyHigh)
			})
		})

		convey.Convey("When the document has overlapping weights", func() {
			_, err := config.LoadScoring(ctx, writeFile(t, "scoring.yaml", overlappingScoring))

			convey.Convey("Then it is rejected at load time", func() {
				convey.So(errors.Is(err, config.ErrLoadScoring), convey.ShouldBeTrue)
				convey.So(errors.Is(err, scoring.ErrOverlappingRanges), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a document uses unbounded ranges", func() {
			cfg, err := config.LoadScoring(ctx, writeFile(t, "scoring.yaml", unboundedScoring))

			convey.Convey("Then the bounds load as infinity and the document still encodes", func() {
				convey.So(err, convey.ShouldBeNil)
				high := cfg.Document().NormalizedTimePerEWToRiskLevelMapping[1].NormalizedTimeRange
				convey.So(math.IsInf(high.Max, 1), convey.ShouldBeTrue)

				b, merr := json.Marshal(cfg.Document())
				convey.So(merr, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldContainSubstring, `"max":null`)
			})
		})

		convey.Convey("When the file is missing", func() {
			_, err := config.LoadScoring(ctx, "/non/existent/scoring.yaml")

			convey.Convey("Then the load fails", func() {
				convey.So(errors.Is(err, config.ErrLoadScoring), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWatchScoring(t *testing.T) {
	convey.Convey("Given a watched scoring configuration file", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		path := writeFile(t, "scoring.yaml", scoringDoc("v1"))

		changes := make(chan *scoring.Configuration, 4)
		w, err := config.WatchScoring(ctx, path, func(c *scoring.Configuration, err error) {
			if err == nil {
				changes <- c
			}
		})
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = w.Close() }()

		convey.Convey("When the file is rewritten", func() {
			convey.So(os.WriteFile(path, []byte(scoringDoc("v2")), 0o600), convey.ShouldBeNil)

			convey.Convey("Then the new version is delivered", func() {
				select {
				case c := <-changes:
					convey.So(c.Version(), convey.ShouldEqual, "v2")
				case <-time.After(5 * time.Second):
					convey.So("timeout waiting for reload", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given no path", t, func() {
		_, err := config.WatchScoring(context.Background(), "", func(*scoring.Configuration, error) {})

		convey.Convey("Then watching is refused", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
