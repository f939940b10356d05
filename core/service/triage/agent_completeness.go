package triage

import "quote_agent/core/domain"

// =============================================================================
// Completeness Evaluator
// =============================================================================

// Completeness knobs on the 0-100 score.
const (
	// LowInfoThreshold: below, the request barely says anything.
	LowInfoThreshold = 40
	// MissingFieldPenalty is subtracted per missing field.
	MissingFieldPenalty = 20
	// MaxPartialMissing is the most missing fields a request may carry
	// and still be quoted, provided none of them is critical.
	MaxPartialMissing = 2
)

// Field names used in missing-field lists and follow-up templates.
const (
	FieldClientName     = "client_name"
	FieldClientEmail    = "client_email"
	FieldDestination    = "destination"
	FieldStartDate      = "start_date"
	FieldEndDate        = "end_date"
	FieldPreferredMonth = "preferred_month"
	FieldTravelers      = "travelers"
	FieldAdults         = "adults"
	FieldChildren       = "children"

	FieldBudget    = "budget.amount"
	FieldInterests = "interests"
	FieldDietary   = "dietary.preferences"
)

// nonCriticalFields are asked for in follow-ups but do not block quoting.
var nonCriticalFields = map[string]bool{
	FieldBudget:    true,
	FieldInterests: true,
	FieldDietary:   true,
}

// essentialFields must all be present before a request can ever be quoted.
var essentialFields = map[string]bool{
	FieldClientName:  true,
	FieldClientEmail: true,
	FieldDestination: true,
}

// MissingFields returns the deterministic list of missing fields for a
// merged record, essentials first. The same input always yields the same
// list in the same order.
func MissingFields(trip *domain.TripDetails, contact *domain.ContactInfo) []string {
	var missing []string

	if contact.Name == "" {
		missing = append(missing, FieldClientName)
	}
	if contact.Email == "" {
		missing = append(missing, FieldClientEmail)
	}
	if trip.Destination == "" {
		missing = append(missing, FieldDestination)
	}

	if trip.FlexibleDates {
		// Flexible dates only need a rough month, never exact dates.
		if trip.PreferredMonth == "" {
			missing = append(missing, FieldPreferredMonth)
		}
	} else {
		if trip.StartDate == "" {
			missing = append(missing, FieldStartDate)
		}
		// Duration stands in for a firm end date.
		if trip.EndDate == "" && trip.DurationDays == 0 {
			missing = append(missing, FieldEndDate)
		}
	}

	hasTotal := trip.NumberOfPeople > 0
	hasAdults := trip.Adults > 0
	hasChildren := trip.Children > 0
	switch {
	case !hasTotal && !hasAdults:
		missing = append(missing, FieldTravelers)
	case hasTotal && !hasAdults && !hasChildren:
		// A bare total: ask how it splits between adults and children.
		missing = append(missing, FieldAdults, FieldChildren)
	case hasTotal && trip.Adults+trip.Children != trip.NumberOfPeople:
		missing = append(missing, FieldTravelers, FieldAdults, FieldChildren)
	}

	if trip.Budget.Amount == 0 {
		missing = append(missing, FieldBudget)
	}
	if len(trip.Interests) == 0 {
		missing = append(missing, FieldInterests)
	}
	if len(trip.Dietary.Preferences) == 0 && trip.Dietary.Notes == "" {
		missing = append(missing, FieldDietary)
	}

	return missing
}

// CriticalMissing filters a missing-field list down to the critical subset.
func CriticalMissing(missing []string) []string {
	var critical []string
	for _, f := range missing {
		if !nonCriticalFields[f] {
			critical = append(critical, f)
		}
	}
	return critical
}

// CompletenessScore computes max(0, 100 - 20*len(missing)).
func CompletenessScore(missing []string) int {
	score := 100 - MissingFieldPenalty*len(missing)
	if score < 0 {
		score = 0
	}
	return score
}

// LowInformation reports a request that states almost none of the critical
// trip facts.
func LowInformation(missing []string) bool {
	return 100-MissingFieldPenalty*len(CriticalMissing(missing)) < LowInfoThreshold
}

// EvaluateCompleteness maps a missing-field list to a score and status.
// A request is ready only when nothing essential is absent and at most
// MaxPartialMissing non-critical fields remain open.
func EvaluateCompleteness(missing []string) (int, domain.QuotationStatus) {
	score := CompletenessScore(missing)

	if len(missing) == 0 {
		return score, domain.StatusReady
	}
	for _, f := range missing {
		if essentialFields[f] {
			return score, domain.StatusPendingInfo
		}
	}
	if len(missing) <= MaxPartialMissing && len(CriticalMissing(missing)) == 0 {
		return score, domain.StatusReady
	}
	return score, domain.StatusPendingInfo
}
