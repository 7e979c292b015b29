package scoring

import (
	"fmt"
	"strings"
)

// Aggregation rule names accepted in a configuration document.
const (
	RuleAnyHigh = "any_high"
	RulePerDay  = "per_day"
)

// RiskLevel is the low/high classification of a window or a day.
// RiskLevelNone marks a classification that has not been made.
type RiskLevel int

const (
	RiskLevelNone RiskLevel = iota
	RiskLevelLow
	RiskLevelHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLevelLow:
		return "low"
	case RiskLevelHigh:
		return "high"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l RiskLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RiskLevel) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "none" {
		*l = RiskLevelNone
		return nil
	}
	v, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseRiskLevel accepts "low" or "high" (case-insensitive).
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLevelLow, nil
	case "high":
		return RiskLevelHigh, nil
	}
	return RiskLevelNone, fmt.Errorf("%w: %q", ErrUnknownRiskLevel, s)
}

// TRLEncoding holds the integer offsets that make up a transmission risk level.
type TRLEncoding struct {
	InfectiousnessOffsetStandard               int `koanf:"infectiousness_offset_standard" json:"infectiousness_offset_standard" yaml:"infectiousness_offset_standard"`
	InfectiousnessOffsetHigh                   int `koanf:"infectiousness_offset_high" json:"infectiousness_offset_high" yaml:"infectiousness_offset_high"`
	ReportTypeOffsetConfirmedTest              int `koanf:"report_type_offset_confirmed_test" json:"report_type_offset_confirmed_test" yaml:"report_type_offset_confirmed_test"`
	ReportTypeOffsetConfirmedClinicalDiagnosis int `koanf:"report_type_offset_confirmed_clinical_diagnosis" json:"report_type_offset_confirmed_clinical_diagnosis" yaml:"report_type_offset_confirmed_clinical_diagnosis"`
	ReportTypeOffsetSelfReport                 int `koanf:"report_type_offset_self_report" json:"report_type_offset_self_report" yaml:"report_type_offset_self_report"`
	ReportTypeOffsetRecursive                  int `koanf:"report_type_offset_recursive" json:"report_type_offset_recursive" yaml:"report_type_offset_recursive"`
}

// AttenuationWeight weights minutes spent within an attenuation bucket.
type AttenuationWeight struct {
	AttenuationRange RiskRange `koanf:"attenuation_range" json:"attenuation_range" yaml:"attenuation_range"`
	Weight           float64   `koanf:"weight" json:"weight" yaml:"weight"`
}

// AttenuationFilter drops a window whose whole minutes within
// AttenuationRange fall inside DropIfMinutesInRange.
type AttenuationFilter struct {
	AttenuationRange     RiskRange `koanf:"attenuation_range" json:"attenuation_range" yaml:"attenuation_range"`
	DropIfMinutesInRange RiskRange `koanf:"drop_if_minutes_in_range" json:"drop_if_minutes_in_range" yaml:"drop_if_minutes_in_range"`
}

// TRLFilter drops a window whose transmission risk level is in range.
type TRLFilter struct {
	DropIfTRLInRange RiskRange `koanf:"drop_if_trl_in_range" json:"drop_if_trl_in_range" yaml:"drop_if_trl_in_range"`
}

// RiskLevelMapping classifies a normalized time range.
type RiskLevelMapping struct {
	NormalizedTimeRange RiskRange `koanf:"normalized_time_range" json:"normalized_time_range" yaml:"normalized_time_range"`
	RiskLevel           string    `koanf:"risk_level" json:"risk_level" yaml:"risk_level"`
}

// ConfigurationDocument is the decoded, versioned scoring configuration as
// delivered by the distribution service or read from a file.
type ConfigurationDocument struct {
	Version                                string              `koanf:"version" json:"version" yaml:"version"`
	TRLEncoding                            TRLEncoding         `koanf:"trl_encoding" json:"trl_encoding" yaml:"trl_encoding"`
	TransmissionRiskLevelMultiplier        float64             `koanf:"transmission_risk_level_multiplier" json:"transmission_risk_level_multiplier" yaml:"transmission_risk_level_multiplier"`
	MinutesAtAttenuationWeights            []AttenuationWeight `koanf:"minutes_at_attenuation_weights" json:"minutes_at_attenuation_weights" yaml:"minutes_at_attenuation_weights"`
	MinutesAtAttenuationFilters            []AttenuationFilter `koanf:"minutes_at_attenuation_filters" json:"minutes_at_attenuation_filters" yaml:"minutes_at_attenuation_filters"`
	TRLFilters                             []TRLFilter         `koanf:"trl_filters" json:"trl_filters" yaml:"trl_filters"`
	NormalizedTimePerEWToRiskLevelMapping  []RiskLevelMapping  `koanf:"normalized_time_per_ew_to_risk_level_mapping" json:"normalized_time_per_ew_to_risk_level_mapping" yaml:"normalized_time_per_ew_to_risk_level_mapping"`
	NormalizedTimePerDayToRiskLevelMapping []RiskLevelMapping  `koanf:"normalized_time_per_day_to_risk_level_mapping" json:"normalized_time_per_day_to_risk_level_mapping" yaml:"normalized_time_per_day_to_risk_level_mapping"`
	MaxEncounterAgeInDays                  int                 `koanf:"max_encounter_age_in_days" json:"max_encounter_age_in_days" yaml:"max_encounter_age_in_days"`
	AggregationRule                        string              `koanf:"aggregation_rule" json:"aggregation_rule" yaml:"aggregation_rule"`
}

// Configuration is the validated, immutable form of a ConfigurationDocument.
// A single *Configuration may be shared by any number of concurrent scoring
// calls; nothing reachable from it is ever written after construction.
type Configuration struct {
	version         string
	trl             TRLEncoding
	multiplier      float64
	weights         []Ranged[float64]
	filters         []AttenuationFilter
	trlFilters      []RiskRange
	perWindow       []Ranged[RiskLevel]
	perDay          []Ranged[RiskLevel]
	maxEncounterAge int
	rule            string
}

// NewConfiguration validates doc and copies it into an immutable Configuration.
func NewConfiguration(doc ConfigurationDocument) (*Configuration, error) {
	c := &Configuration{
		version:         strings.TrimSpace(doc.Version),
		trl:             doc.TRLEncoding,
		multiplier:      doc.TransmissionRiskLevelMultiplier,
		filters:         make([]AttenuationFilter, len(doc.MinutesAtAttenuationFilters)),
		trlFilters:      make([]RiskRange, 0, len(doc.TRLFilters)),
		maxEncounterAge: doc.MaxEncounterAgeInDays,
	}

	c.weights = make([]Ranged[float64], 0, len(doc.MinutesAtAttenuationWeights))
	for i, w := range doc.MinutesAtAttenuationWeights {
		if w.AttenuationRange.empty() {
			return nil, fmt.Errorf("%w: minutes_at_attenuation_weights[%d] %s", ErrEmptyRange, i, w.AttenuationRange)
		}
		c.weights = append(c.weights, Ranged[float64]{Range: w.AttenuationRange, Value: w.Weight})
	}
	if i, j, ok := firstOverlap(c.weights); ok {
		return nil, fmt.Errorf("%w: minutes_at_attenuation_weights[%d] %s and [%d] %s",
			ErrOverlappingRanges, i, c.weights[i].Range, j, c.weights[j].Range)
	}

	copy(c.filters, doc.MinutesAtAttenuationFilters)
	for _, f := range doc.TRLFilters {
		c.trlFilters = append(c.trlFilters, f.DropIfTRLInRange)
	}

	var err error
	if c.perWindow, err = buildMapping("normalized_time_per_ew_to_risk_level_mapping", doc.NormalizedTimePerEWToRiskLevelMapping); err != nil {
		return nil, err
	}
	if len(c.perWindow) == 0 {
		return nil, fmt.Errorf("%w: normalized_time_per_ew_to_risk_level_mapping is empty", ErrInvalidDocument)
	}
	if c.perDay, err = buildMapping("normalized_time_per_day_to_risk_level_mapping", doc.NormalizedTimePerDayToRiskLevelMapping); err != nil {
		return nil, err
	}

	if c.maxEncounterAge < 0 {
		return nil, fmt.Errorf("%w: max_encounter_age_in_days must not be negative", ErrInvalidDocument)
	}

	switch rule := strings.ToLower(strings.TrimSpace(doc.AggregationRule)); rule {
	case "":
		c.rule = RuleAnyHigh
		if len(c.perDay) > 0 {
			c.rule = RulePerDay
		}
	case RuleAnyHigh:
		c.rule = rule
	case RulePerDay:
		if len(c.perDay) == 0 {
			return nil, fmt.Errorf("%w: per_day aggregation needs normalized_time_per_day_to_risk_level_mapping", ErrInvalidDocument)
		}
		c.rule = rule
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, doc.AggregationRule)
	}

	return c, nil
}

func buildMapping(name string, in []RiskLevelMapping) ([]Ranged[RiskLevel], error) {
	out := make([]Ranged[RiskLevel], 0, len(in))
	for i, m := range in {
		if m.NormalizedTimeRange.empty() {
			return nil, fmt.Errorf("%w: %s[%d] %s", ErrEmptyRange, name, i, m.NormalizedTimeRange)
		}
		level, err := ParseRiskLevel(m.RiskLevel)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		out = append(out, Ranged[RiskLevel]{Range: m.NormalizedTimeRange, Value: level})
	}
	if i, j, ok := firstOverlap(out); ok {
		return nil, fmt.Errorf("%w: %s[%d] %s and [%d] %s", ErrOverlappingRanges, name, i, out[i].Range, j, out[j].Range)
	}
	return out, nil
}

// Version returns the configuration version string.
func (c *Configuration) Version() string { return c.version }

// TRLEncoding returns the transmission risk level offsets.
func (c *Configuration) TRLEncoding() TRLEncoding { return c.trl }

// TransmissionRiskLevelMultiplier returns the TRL multiplier.
func (c *Configuration) TransmissionRiskLevelMultiplier() float64 { return c.multiplier }

// MaxEncounterAgeInDays returns the encounter age limit; 0 means unlimited.
func (c *Configuration) MaxEncounterAgeInDays() int { return c.maxEncounterAge }

// AggregationRule returns the resolved aggregation rule name.
func (c *Configuration) AggregationRule() string { return c.rule }

// AttenuationWeight returns the weight of the first bucket containing
// attenuation, or 0 when no bucket does.
func (c *Configuration) AttenuationWeight(attenuation int32) float64 {
	w, ok := FirstMatch(c.weights, float64(attenuation))
	if !ok {
		return 0
	}
	return w
}

// ClassifyWindow maps a per-window normalized time to a risk level.
func (c *Configuration) ClassifyWindow(normalizedTime float64) (RiskLevel, error) {
	level, ok := FirstMatch(c.perWindow, normalizedTime)
	if !ok {
		return RiskLevelNone, fmt.Errorf("%w: normalized time %g not covered by per-window risk level mapping", ErrInvalidConfiguration, normalizedTime)
	}
	return level, nil
}

// ClassifyDay maps a per-day normalized time sum to a risk level.
func (c *Configuration) ClassifyDay(normalizedTime float64) (RiskLevel, error) {
	level, ok := FirstMatch(c.perDay, normalizedTime)
	if !ok {
		return RiskLevelNone, fmt.Errorf("%w: normalized time %g not covered by per-day risk level mapping", ErrInvalidConfiguration, normalizedTime)
	}
	return level, nil
}

// Document returns a copy of the configuration in document form.
func (c *Configuration) Document() ConfigurationDocument {
	doc := ConfigurationDocument{
		Version:                         c.version,
		TRLEncoding:                     c.trl,
		TransmissionRiskLevelMultiplier: c.multiplier,
		MinutesAtAttenuationFilters:     append([]AttenuationFilter(nil), c.filters...),
		MaxEncounterAgeInDays:           c.maxEncounterAge,
		AggregationRule:                 c.rule,
	}
	for _, w := range c.weights {
		doc.MinutesAtAttenuationWeights = append(doc.MinutesAtAttenuationWeights, AttenuationWeight{AttenuationRange: w.Range, Weight: w.Value})
	}
	for _, r := range c.trlFilters {
		doc.TRLFilters = append(doc.TRLFilters, TRLFilter{DropIfTRLInRange: r})
	}
	for _, m := range c.perWindow {
		doc.NormalizedTimePerEWToRiskLevelMapping = append(doc.NormalizedTimePerEWToRiskLevelMapping, RiskLevelMapping{NormalizedTimeRange: m.Range, RiskLevel: m.Value.String()})
	}
	for _, m := range c.perDay {
		doc.NormalizedTimePerDayToRiskLevelMapping = append(doc.NormalizedTimePerDayToRiskLevelMapping, RiskLevelMapping{NormalizedTimeRange: m.Range, RiskLevel: m.Value.String()})
	}
	return doc
}
