package metrics

// TSBBand labels a training stress balance value.
type TSBBand string

const (
	TSBVeryFresh    TSBBand = "very_fresh"
	TSBFresh        TSBBand = "fresh"
	TSBOptimal      TSBBand = "optimal"
	TSBTired        TSBBand = "tired"
	TSBFatigued     TSBBand = "fatigued"
	TSBVeryFatigued TSBBand = "very_fatigued"
)

// ACWRRisk labels an acute:chronic workload ratio.
type ACWRRisk string

const (
	ACWRUndertraining ACWRRisk = "undertraining"
	ACWRSweetSpot     ACWRRisk = "sweet_spot"
	ACWRCaution       ACWRRisk = "caution"
	ACWRDanger        ACWRRisk = "danger"
)

// MonotonyRisk labels a training monotony value.
type MonotonyRisk string

const (
	MonotonyLow      MonotonyRisk = "low"
	MonotonyModerate MonotonyRisk = "moderate"
	MonotonyHigh     MonotonyRisk = "high"
)

// Classification thresholds. Values exactly on a boundary fall into the
// fresher, lower-risk band.
const (
	tsbVeryFreshMin = 25.0
	tsbFreshMin     = 10.0
	tsbOptimalMin   = -10.0
	tsbTiredMin     = -25.0
	tsbFatiguedMin  = -40.0

	acwrSweetSpotMin = 0.8
	acwrSweetSpotMax = 1.3
	acwrCautionMax   = 1.5

	monotonyModerateMin = 1.5
	monotonyModerateMax = 2.0
)

// ClassifyTSB maps a training stress balance to its freshness band.
func ClassifyTSB(tsb float64) TSBBand {
	switch {
	case tsb >= tsbVeryFreshMin:
		return TSBVeryFresh
	case tsb >= tsbFreshMin:
		return TSBFresh
	case tsb >= tsbOptimalMin:
		return TSBOptimal
	case tsb >= tsbTiredMin:
		return TSBTired
	case tsb >= tsbFatiguedMin:
		return TSBFatigued
	default:
		return TSBVeryFatigued
	}
}

// ClassifyACWR maps an acute:chronic workload ratio to its injury-risk band.
func ClassifyACWR(acwr float64) ACWRRisk {
	switch {
	case acwr < acwrSweetSpotMin:
		return ACWRUndertraining
	case acwr <= acwrSweetSpotMax:
		return ACWRSweetSpot
	case acwr <= acwrCautionMax:
		return ACWRCaution
	default:
		return ACWRDanger
	}
}

// ClassifyMonotony maps a monotony value to its risk band.
func ClassifyMonotony(monotony float64) MonotonyRisk {
	switch {
	case monotony < monotonyModerateMin:
		return MonotonyLow
	case monotony <= monotonyModerateMax:
		return MonotonyModerate
	default:
		return MonotonyHigh
	}
}
