package triage

import (
	"context"
	"fmt"
	"time"

	"quote_agent/core/domain"
	"quote_agent/core/port/in"
	"quote_agent/core/port/out"
	"quote_agent/core/service/classification"
	"quote_agent/pkg/apperr"
	"quote_agent/pkg/logger"
)

// =============================================================================
// Per-Email Pipeline
// =============================================================================

// ServiceConfig holds the labels the pipeline applies.
type ServiceConfig struct {
	ProcessedLabel string
	ReviewLabel    string
}

// Service runs the full per-email pipeline: classify, extract,
// cross-validate, evaluate completeness, reconcile, follow up.
type Service struct {
	classifier *classification.Classifier
	llm        out.LLM
	provider   out.EmailProvider
	quotes     out.QuotationRepository
	followUps  *FollowUpManager
	cfg        ServiceConfig
	log        *logger.Logger
}

// NewService wires the pipeline.
func NewService(classifier *classification.Classifier, llm out.LLM, provider out.EmailProvider, quotes out.QuotationRepository, followUps *FollowUpManager, cfg ServiceConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		classifier: classifier,
		llm:        llm,
		provider:   provider,
		quotes:     quotes,
		followUps:  followUps,
		cfg:        cfg,
		log:        log,
	}
}

// ProcessEmail handles one inbound email end to end.
func (s *Service) ProcessEmail(ctx context.Context, email *domain.EmailMessage) (*in.EmailResult, error) {
	log := s.log.WithMessage(email.ID)
	start := time.Now()

	// Reprocessing guard: a message handled once is never handled again,
	// whatever its read state in the mailbox.
	processed, err := s.quotes.IsProcessed(ctx, email.ID)
	if err != nil {
		return nil, apperr.StoreError("processed lookup", err)
	}
	if processed {
		log.Debug("message already processed, skipping")
		return &in.EmailResult{MessageID: email.ID, Skipped: true}, nil
	}

	result := &in.EmailResult{MessageID: email.ID}

	verdict, err := s.classifier.Classify(ctx, email)
	if err != nil {
		return nil, apperr.ClassificationError(email.ID, err)
	}
	result.Verdict = verdict
	if verdict.LLMUsed {
		result.LLMCalls++
	}

	if !verdict.Actionable {
		if err := s.finishMessage(ctx, email.ID, false); err != nil {
			return nil, err
		}
		log.WithDuration(time.Since(start)).
			WithField("confidence", verdict.Confidence).
			Info("email is not an actionable quotation request")
		return result, nil
	}

	extraction, err := s.llm.ExtractTrip(ctx, email)
	if err != nil {
		return nil, apperr.ExtractionError(email.ID, err)
	}
	result.LLMCalls++

	quotation, err := s.reconcile(ctx, email, verdict, extraction)
	if err != nil {
		return nil, err
	}
	result.Quotation = quotation

	// Incomplete requests get an information request in the same thread.
	if quotation.Status == domain.StatusPendingInfo && s.followUps != nil {
		if err := s.followUps.RequestMissingInfo(ctx, quotation); err != nil {
			// A failed follow-up email never loses the quotation itself.
			log.WithError(err).Warn("failed to request missing info")
		} else if len(CriticalMissing(quotation.MissingFields)) > 0 {
			result.FollowUp = true
		}
	}
	if quotation.Status == domain.StatusReady && s.followUps != nil {
		if err := s.followUps.MarkResponded(ctx, quotation.ID, true); err != nil {
			log.WithError(err).Warn("failed to close follow-up loop")
		}
	}

	if err := s.finishMessage(ctx, email.ID, quotation.NeedsReview); err != nil {
		return nil, err
	}

	log.WithDuration(time.Since(start)).
		WithField("quotation_id", quotation.ID).
		WithField("status", string(quotation.Status)).
		WithField("completeness", quotation.CompletenessScore).
		Info("quotation request processed")
	return result, nil
}

// reconcile applies the extraction and merges it into the store, updating
// an existing open quotation from the same sender when there is one.
func (s *Service) reconcile(ctx context.Context, email *domain.EmailMessage, verdict *domain.ClassificationVerdict, extraction *out.Extraction) (*domain.Quotation, error) {
	existing, err := s.quotes.FindBySender(ctx, email.FromEmail)
	if err != nil {
		return nil, apperr.StoreError("sender lookup", err)
	}

	now := time.Now().UTC()

	if existing != nil {
		applyTrip(&existing.Trip, &extraction.Trip)
		mergeContact(&existing.Contact, &extraction.Contact)
		if extraction.Language != "" {
			existing.Language = extraction.Language
		}

		repairs := RepairPersonCount(&existing.Trip, HasGroupSignal(verdict.Signals))
		reviewReasons := collectReviewReasons(verdict, &existing.Trip, &existing.Contact)

		existing.MissingFields = MissingFields(&existing.Trip, &existing.Contact)
		existing.CompletenessScore, existing.Status = EvaluateCompleteness(existing.MissingFields)
		if LowInformation(existing.MissingFields) {
			reviewReasons = append(reviewReasons, "very little trip information provided")
		}
		existing.NeedsReview = existing.NeedsReview || len(reviewReasons) > 0
		existing.ReviewReasons = append(existing.ReviewReasons, reviewReasons...)
		// Later replies thread off the client's most recent message.
		existing.SourceRFC822ID = email.RFC822MsgID
		existing.SourceReferences = email.References
		existing.UpdatedAt = now
		existing.AddEvent("updated", fmt.Sprintf("merged message %s", email.ID))
		for _, r := range repairs {
			existing.AddEvent("repair", r)
		}

		if err := s.quotes.Update(ctx, existing); err != nil {
			return nil, apperr.StoreError("quotation update", err)
		}
		return existing, nil
	}

	var trip domain.TripDetails
	applyTrip(&trip, &extraction.Trip)

	repairs := RepairPersonCount(&trip, HasGroupSignal(verdict.Signals))
	reviewReasons := collectReviewReasons(verdict, &trip, &extraction.Contact)

	missing := MissingFields(&trip, &extraction.Contact)
	score, status := EvaluateCompleteness(missing)
	if LowInformation(missing) {
		reviewReasons = append(reviewReasons, "very little trip information provided")
	}

	q := &domain.Quotation{
		Status:            status,
		Type:              verdict.Type,
		Contact:           extraction.Contact,
		Trip:              trip,
		Language:          extraction.Language,
		MissingFields:     missing,
		CompletenessScore: score,
		NeedsReview:       len(reviewReasons) > 0,
		ReviewReasons:     reviewReasons,
		SourceMessageID:   email.ID,
		SourceRFC822ID:    email.RFC822MsgID,
		SourceReferences:  email.References,
		ThreadID:          email.ThreadID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	q.AddEvent("created", fmt.Sprintf("from message %s, confidence %d", email.ID, verdict.Confidence))
	for _, r := range repairs {
		q.AddEvent("repair", r)
	}

	inserted, err := s.quotes.Insert(ctx, q)
	if err != nil {
		return nil, apperr.StoreError("quotation insert", err)
	}
	return inserted, nil
}

// collectReviewReasons cross-checks the merged record against the verdict.
func collectReviewReasons(verdict *domain.ClassificationVerdict, trip *domain.TripDetails, contact *domain.ContactInfo) []string {
	reasons := ValidateExtraction(verdict, trip, contact)
	if trip.Adults > MaxPlausibleAdults && !HasGroupSignal(verdict.Signals) {
		reasons = append(reasons, fmt.Sprintf("adult count %d exceeds plausibility limit", trip.Adults))
	}
	return reasons
}

// finishMessage marks the provider message handled: read, labeled, and
// registered in the reprocessing guard.
func (s *Service) finishMessage(ctx context.Context, messageID string, needsReview bool) error {
	if err := s.provider.MarkRead(ctx, messageID); err != nil {
		return apperr.ProviderError("mark read", err)
	}
	if s.cfg.ProcessedLabel != "" {
		if err := s.provider.ApplyLabel(ctx, messageID, s.cfg.ProcessedLabel); err != nil {
			return apperr.ProviderError("apply processed label", err)
		}
	}
	if needsReview && s.cfg.ReviewLabel != "" {
		if err := s.provider.ApplyLabel(ctx, messageID, s.cfg.ReviewLabel); err != nil {
			return apperr.ProviderError("apply review label", err)
		}
	}
	if err := s.quotes.MarkProcessed(ctx, messageID); err != nil {
		return apperr.StoreError("mark processed", err)
	}
	return nil
}

// applyTrip overwrites stored trip fields with every field the patch
// carries. A stated 0 or false replaces the stored value; an absent field
// never does.
func applyTrip(dst *domain.TripDetails, p *out.TripPatch) {
	if p.Destination != nil {
		dst.Destination = *p.Destination
	}
	if p.Origin != nil {
		dst.Origin = *p.Origin
	}
	if p.StartDate != nil {
		dst.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		dst.EndDate = *p.EndDate
	}
	if p.PreferredMonth != nil {
		dst.PreferredMonth = *p.PreferredMonth
	}
	if p.FlexibleDates != nil {
		dst.FlexibleDates = *p.FlexibleDates
	}
	if p.DurationDays != nil {
		dst.DurationDays = *p.DurationDays
	}
	if p.NumberOfPeople != nil {
		dst.NumberOfPeople = *p.NumberOfPeople
	}
	if p.Adults != nil {
		dst.Adults = *p.Adults
	}
	if p.Children != nil {
		dst.Children = *p.Children
	}
	if len(p.ChildAges) > 0 {
		dst.ChildAges = p.ChildAges
	}
	if p.Budget != nil {
		dst.Budget = *p.Budget
	}
	if p.Accommodation != nil {
		dst.Accommodation = *p.Accommodation
	}
	if len(p.Interests) > 0 {
		dst.Interests = p.Interests
	}
	if p.Dietary != nil {
		dst.Dietary = *p.Dietary
	}
	if p.SpecialNotes != nil {
		dst.SpecialNotes = *p.SpecialNotes
	}
}

// mergeContact fills gaps in the stored contact from the new extraction.
func mergeContact(dst, src *domain.ContactInfo) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
	if src.Company != "" {
		dst.Company = src.Company
	}
}

// Ensure Service implements the triage port
var _ in.TriageService = (*Service)(nil)
