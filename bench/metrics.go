package bench

import (
	"sort"

	"github.com/solvekit/solvent/classify"
)

// KindStats aggregates what happened after attempts failed with one error
// kind: how often it appeared, and how often the very next attempt passed.
type KindStats struct {
	Kind     classify.Kind `json:"kind"`
	Count    int           `json:"count"`
	Repaired int           `json:"repaired"`
	// RepairRate is Repaired over the occurrences that had a following
	// attempt; failures on the final attempt are excluded from the base.
	RepairRate float64 `json:"repair_rate"`
}

// Summary is the aggregate view over a full run.
type Summary struct {
	Tasks         int         `json:"tasks"`
	Solved        int         `json:"solved"`
	SolvedFirst   int         `json:"solved_first_attempt"`
	PassAt1       float64     `json:"pass_at_1"`
	PassRate      float64     `json:"pass_rate"`
	MeanAttempts  float64     `json:"mean_attempts"`
	TotalAttempts int         `json:"total_attempts"`
	ErrorKinds    []KindStats `json:"error_kinds"`
}

// Summarize computes run-level metrics from per-task reports. Pass@1 counts
// tasks solved on the very first attempt; the repair rate per error kind is
// the fraction of occurrences where the next attempt passed its tests.
func Summarize(reports []*TaskReport) *Summary {
	s := &Summary{Tasks: len(reports)}

	counts := make(map[classify.Kind]int)
	repaired := make(map[classify.Kind]int)
	retried := make(map[classify.Kind]int)

	for _, r := range reports {
		s.TotalAttempts += len(r.Ledger)
		if r.Outcome.Solved {
			s.Solved++
			if r.Outcome.SolvedAttempt == 1 {
				s.SolvedFirst++
			}
		}
		for i, rec := range r.Ledger {
			if rec.Error == nil {
				continue
			}
			counts[rec.Error.Kind]++
			if i+1 < len(r.Ledger) {
				retried[rec.Error.Kind]++
				if r.Ledger[i+1].Succeeded() {
					repaired[rec.Error.Kind]++
				}
			}
		}
	}

	if s.Tasks > 0 {
		s.PassAt1 = float64(s.SolvedFirst) / float64(s.Tasks)
		s.PassRate = float64(s.Solved) / float64(s.Tasks)
		s.MeanAttempts = float64(s.TotalAttempts) / float64(s.Tasks)
	}

	for kind, count := range counts {
		ks := KindStats{Kind: kind, Count: count, Repaired: repaired[kind]}
		if retried[kind] > 0 {
			ks.RepairRate = float64(repaired[kind]) / float64(retried[kind])
		}
		s.ErrorKinds = append(s.ErrorKinds, ks)
	}
	sort.Slice(s.ErrorKinds, func(i, j int) bool {
		if s.ErrorKinds[i].Count != s.ErrorKinds[j].Count {
			return s.ErrorKinds[i].Count > s.ErrorKinds[j].Count
		}
		return s.ErrorKinds[i].Kind < s.ErrorKinds[j].Kind
	})
	return s
}
