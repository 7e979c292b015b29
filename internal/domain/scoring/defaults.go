package scoring

// Bounds used by the built-in configuration for "no upper limit".
const (
	unboundedNormalizedTime = 9999
	highRiskThresholdMin    = 15
)

// DefaultDocument returns the built-in scoring configuration used when no
// configuration file is supplied.
func DefaultDocument() ConfigurationDocument {
	return ConfigurationDocument{
		Version: "builtin-1",
		TRLEncoding: TRLEncoding{
			InfectiousnessOffsetStandard:               0,
			InfectiousnessOffsetHigh:                   4,
			ReportTypeOffsetConfirmedTest:              2,
			ReportTypeOffsetConfirmedClinicalDiagnosis: 4,
			ReportTypeOffsetSelfReport:                 6,
			ReportTypeOffsetRecursive:                  8,
		},
		TransmissionRiskLevelMultiplier: 0.2,
		MinutesAtAttenuationWeights: []AttenuationWeight{
			{AttenuationRange: RiskRange{Min: 0, Max: 55}, Weight: 1.0},
			{AttenuationRange: RiskRange{Min: 55, Max: 63, MinExclusive: true}, Weight: 0.5},
			{AttenuationRange: RiskRange{Min: 63, Max: 73, MinExclusive: true}, Weight: 0.0},
		},
		MinutesAtAttenuationFilters: []AttenuationFilter{
			{
				AttenuationRange:     RiskRange{Min: 0, Max: 73, MaxExclusive: true},
				DropIfMinutesInRange: RiskRange{Min: 0, Max: 10, MaxExclusive: true},
			},
		},
		TRLFilters: []TRLFilter{
			{DropIfTRLInRange: RiskRange{Min: 1, Max: 2}},
		},
		NormalizedTimePerEWToRiskLevelMapping: []RiskLevelMapping{
			{NormalizedTimeRange: RiskRange{Min: 0, Max: highRiskThresholdMin, MaxExclusive: true}, RiskLevel: "low"},
			{NormalizedTimeRange: RiskRange{Min: highRiskThresholdMin, Max: unboundedNormalizedTime}, RiskLevel: "high"},
		},
		NormalizedTimePerDayToRiskLevelMapping: []RiskLevelMapping{
			{NormalizedTimeRange: RiskRange{Min: 0, Max: highRiskThresholdMin, MaxExclusive: true}, RiskLevel: "low"},
			{NormalizedTimeRange: RiskRange{Min: highRiskThresholdMin, Max: unboundedNormalizedTime}, RiskLevel: "high"},
		},
		MaxEncounterAgeInDays: 14,
		AggregationRule:       RulePerDay,
	}
}

// Default returns the built-in configuration in validated form.
func Default() *Configuration {
	c, err := NewConfiguration(DefaultDocument())
	if err != nil {
		panic("scoring: built-in configuration is invalid: " + err.Error())
	}
	return c
}
