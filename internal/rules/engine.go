// Package rules maps scored district profiles to recommended actions.
//
// The mapping is a fixed, auditable lookup table over (stress percentile,
// window class). Every branch carries its own justification string so a
// recommendation can always be traced back to exactly one rule.
package rules

import (
	"fmt"

	"github.com/ansel1/merry"

	"github.com/uidai-stress/internal/model"
)

// ErrUnclassifiedProfile is raised when a profile falls outside the rule
// table's domain. The table is total over valid scorer output, so hitting
// this means corrupt input, not a missing rule.
var ErrUnclassifiedProfile = merry.New("unclassified stress profile")

// Percentile thresholds of the rule table.
const (
	CriticalPercentile = 85.0
	WarningPercentile  = 50.0
)

// Fixed justification strings, one per rule branch.
const (
	ReasonMobileVan     = "Stress percentile above 85 with short-term history; urgent temporary intervention"
	ReasonPermanent     = "Stress percentile above 85 sustained over mid/long-term history; structural capacity needed"
	ReasonExtraCounters = "Stress percentile between 50 and 85; augment capacity at existing centres"
	ReasonMonitor       = "Stress percentile below 50; within acceptable range"
	ReasonInsufficient  = "Too few peer districts in window class to rank; monitor until more history accrues"
)

// Decision is one resolved rule table row.
type Decision struct {
	Recommendation model.Recommendation
	Reason         string
	Category       model.Category
}

// Classify resolves the rule table for a single profile. The insufficient
// -peer sentinel (NaN percentile) takes its own branch and is never
// coerced into a numeric comparison.
func Classify(p model.StressProfile) (Decision, error) {
	if !p.HasPercentile() {
		return decide(model.RecMonitorClosely, ReasonInsufficient), nil
	}

	switch p.WindowClass {
	case model.WindowShortTerm, model.WindowMidTerm, model.WindowLongTerm:
	default:
		return Decision{}, merry.Append(ErrUnclassifiedProfile,
			fmt.Sprintf("%s: unknown window class %q", p.Key(), p.WindowClass))
	}

	pct := p.StressPercentile
	switch {
	case pct < 0 || pct > 100:
		return Decision{}, merry.Append(ErrUnclassifiedProfile,
			fmt.Sprintf("%s: percentile %v out of range", p.Key(), pct))
	case pct > CriticalPercentile && p.WindowClass == model.WindowShortTerm:
		return decide(model.RecMobileVan, ReasonMobileVan), nil
	case pct > CriticalPercentile:
		return decide(model.RecPermanentCentre, ReasonPermanent), nil
	case pct >= WarningPercentile:
		return decide(model.RecExtraCounters, ReasonExtraCounters), nil
	default:
		return decide(model.RecMonitor, ReasonMonitor), nil
	}
}

// Apply classifies every profile in place, filling the recommendation,
// reason and category columns. The first unclassifiable profile aborts.
func Apply(profiles []model.StressProfile) error {
	for i := range profiles {
		d, err := Classify(profiles[i])
		if err != nil {
			return err
		}
		profiles[i].Recommendation = d.Recommendation
		profiles[i].Reason = d.Reason
		profiles[i].Category = d.Category
	}
	return nil
}

func decide(rec model.Recommendation, reason string) Decision {
	return Decision{Recommendation: rec, Reason: reason, Category: model.CategoryFor(rec)}
}
