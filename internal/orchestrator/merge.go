package orchestrator

import (
	"github.com/liamashdown/arbwatch/internal/odds"
)

// merge unions events by exact event name. Offers from every contributing
// provider are concatenated as-is; picking the better price is left to the
// detector. Groups keep first-seen order over results in the order given.
func merge(results []providerResult) []odds.Event {
	merged := make([]odds.Event, 0)
	index := make(map[string]int)

	for _, r := range results {
		for _, ev := range r.events {
			i, ok := index[ev.EventName]
			if !ok {
				base := ev
				base.Outcomes = append([]odds.Offer(nil), ev.Outcomes...)
				base.Sources = []string{r.name}
				index[ev.EventName] = len(merged)
				merged = append(merged, base)
				continue
			}

			m := &merged[i]
			m.Outcomes = append(m.Outcomes, ev.Outcomes...)
			if !containsString(m.Sources, r.name) {
				m.Sources = append(m.Sources, r.name)
			}
			if m.CommenceTime == nil && ev.CommenceTime != nil {
				m.CommenceTime = ev.CommenceTime
			}
		}
	}

	return merged
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
