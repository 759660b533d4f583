package backfill

import (
	"time"

	"BTCMonitor/internal/model"
)

// DefaultMinGapDays is the smallest run of missing days worth re-fetching.
// Shorter absences are normal non-trading artifacts, not failures.
const DefaultMinGapDays = 3

// FindGaps walks every calendar day in [start, end] and returns the
// coalesced ranges of missing days whose length is at least minGapDays.
// existing holds persisted dates keyed by YYYY-MM-DD. The returned ranges
// are sorted and never overlap.
func FindGaps(start, end time.Time, existing map[string]struct{}, minGapDays int) []model.DateRange {
	if minGapDays < 1 {
		minGapDays = DefaultMinGapDays
	}
	start, end = model.Day(start), model.Day(end)

	var gaps []model.DateRange
	var gapStart time.Time
	gapLen := 0

	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		if _, ok := existing[cur.Format(model.DateLayout)]; !ok {
			if gapLen == 0 {
				gapStart = cur
			}
			gapLen++
			continue
		}
		if gapLen >= minGapDays {
			gaps = append(gaps, model.DateRange{Start: gapStart, End: cur.AddDate(0, 0, -1)})
		}
		gapLen = 0
	}
	if gapLen >= minGapDays {
		gaps = append(gaps, model.DateRange{Start: gapStart, End: end})
	}

	return gaps
}
