// Package triage turns classified emails into persisted quotation records.
package triage

import (
	"fmt"

	"quote_agent/core/domain"
)

// MaxPlausibleAdults flags group sizes that are almost certainly an
// extraction slip unless group-travel signals support them.
const MaxPlausibleAdults = 50

// RepairPersonCount reconciles the stated total with the adult/children
// breakdown. It mutates the trip in place and returns the applied repairs.
func RepairPersonCount(trip *domain.TripDetails, hasGroupSignal bool) []string {
	var repairs []string

	// Child ages listed but the count missed them.
	if trip.Children == 0 && len(trip.ChildAges) > 0 {
		trip.Children = len(trip.ChildAges)
		repairs = append(repairs, fmt.Sprintf("children set to %d from listed ages", trip.Children))
	}

	sum := trip.Adults + trip.Children
	switch {
	case sum == 0:
		// No breakdown: the stated total, if any, stands alone.
	case trip.NumberOfPeople == 0:
		trip.NumberOfPeople = sum
		repairs = append(repairs, fmt.Sprintf("total travelers set to %d from breakdown", sum))
	case sum == trip.NumberOfPeople:
		// Consistent.
	case trip.Adults == 0 && trip.NumberOfPeople > trip.Children && trip.NumberOfPeople > 1:
		// A breakdown with no adults that contradicts the total is noise;
		// the total alone stands.
		trip.Children = 0
		trip.ChildAges = nil
		repairs = append(repairs, "cleared adult/children breakdown inconsistent with stated total")
	}

	// Implausible head count without group evidence goes to manual review.
	if trip.Adults > MaxPlausibleAdults && !hasGroupSignal {
		repairs = append(repairs, fmt.Sprintf("implausible adult count %d, flagged for review", trip.Adults))
	}

	return repairs
}

// ValidateExtraction cross-checks the extraction against the classification
// verdict and returns review reasons for anything that does not line up.
func ValidateExtraction(verdict *domain.ClassificationVerdict, extraction *domain.TripDetails, contact *domain.ContactInfo) []string {
	var reasons []string

	// A B2B verdict without a company name usually means the detector and
	// the extractor disagree about who is writing.
	if verdict.Type == domain.RequestTypeB2B && contact.Company == "" {
		reasons = append(reasons, "b2b verdict without company name")
	}

	// An actionable quote with zero trip facts is suspicious.
	if verdict.Actionable && extraction.Destination == "" && extraction.TotalTravelers() == 0 && extraction.StartDate == "" {
		reasons = append(reasons, "actionable verdict but extraction is empty")
	}

	// Dates reversed.
	if extraction.StartDate != "" && extraction.EndDate != "" && extraction.EndDate < extraction.StartDate {
		reasons = append(reasons, "end date precedes start date")
	}

	// Negative counts are parse garbage.
	if extraction.Adults < 0 || extraction.Children < 0 || extraction.NumberOfPeople < 0 {
		reasons = append(reasons, "negative traveler count")
	}

	return reasons
}

// HasGroupSignal reports whether the classification carries group-travel
// evidence, used to accept large head counts.
func HasGroupSignal(signals []string) bool {
	for _, s := range signals {
		if s == "strong:group-travel" || s == "b2b:trade-terms" || s == "b2b:operations-vocab" {
			return true
		}
	}
	return false
}
