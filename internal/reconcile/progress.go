package reconcile

// Phase names one stage of a refresh, reported in order.
type Phase string

const (
	PhaseScrape         Phase = "SCRAPE"
	PhaseGeocodeAreas   Phase = "GEOCODE_AREAS"
	PhaseGeocodeForests Phase = "GEOCODE_FORESTS"
	PhasePersist        Phase = "PERSIST"
)

// ProgressFunc receives phase progress. total is 0 while still unknown.
type ProgressFunc func(phase Phase, completed, total int)

// report is a nil-safe invocation helper.
func (fn ProgressFunc) report(phase Phase, completed, total int) {
	if fn != nil {
		fn(phase, completed, total)
	}
}
