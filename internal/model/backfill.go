package model

import "fmt"

// ProviderError tags a fetch failure with the source and gap it occurred on.
type ProviderError struct {
	Provider string
	Gap      DateRange
	Message  string
}

func (e ProviderError) String() string {
	return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Gap, e.Message)
}

// BackfillResult is the report for one orchestrator run. It is built once
// per run and never mutated after Run returns.
type BackfillResult struct {
	RunID         string
	RecordsAdded  int
	CoveredRange  DateRange
	ProvidersUsed []string
	GapsRemaining []DateRange
	Errors        []ProviderError
}
