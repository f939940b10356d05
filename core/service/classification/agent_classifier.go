package classification

import (
	"context"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"
	"quote_agent/pkg/logger"
)

// =============================================================================
// Multi-Level Classifier
// =============================================================================

// Classifier decision thresholds, applied to the [0,100] confidence scale.
const (
	// MinQuoteConfidence: below this the email is discarded without LLM.
	MinQuoteConfidence = 30
	// ArbitrationLow..ArbitrationHigh: the window where the LLM gets a vote.
	ArbitrationLow  = 40
	ArbitrationHigh = 80
	// ActionableThreshold: a quote moves forward only at or above this.
	ActionableThreshold = 70
	// HeuristicQuoteFloor: the score at which the rule engine on its own
	// calls the email a quote request.
	HeuristicQuoteFloor = 50
	// StrongOverrideFloor: heuristic score that outvotes an LLM "no".
	StrongOverrideFloor = 60
)

// Classifier combines the signal scorer, the B2B detector and LLM
// arbitration into a single verdict.
type Classifier struct {
	scorer *SignalScorer
	b2b    *B2BDetector
	llm    out.LLM
	log    *logger.Logger
}

// NewClassifier creates the multi-level classifier. llm may be nil, in which
// case arbitration is skipped and heuristics decide alone.
func NewClassifier(llm out.LLM, log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.Default()
	}
	return &Classifier{
		scorer: NewSignalScorer(),
		b2b:    NewB2BDetector(),
		llm:    llm,
		log:    log,
	}
}

// Classify runs the staged decision for one email.
func (c *Classifier) Classify(ctx context.Context, email *domain.EmailMessage) (*domain.ClassificationVerdict, error) {
	score := c.scorer.Score(email)
	sender := c.b2b.Detect(email)

	verdict := &domain.ClassificationVerdict{
		Confidence: score.Total,
		Type:       sender.Type,
		Signals:    append(score.SignalNames(), sender.Signals...),
		Source:     "heuristic",
	}

	// An automation veto ends the discussion regardless of other matches.
	if score.HardVeto {
		verdict.Confidence = 0
		verdict.Reasoning = "automated sender veto"
		return verdict, nil
	}

	// Weak signals alone never qualify: without tourism context the rest
	// of the pipeline has nothing to extract.
	if score.TourismPoints < TourismGate {
		if verdict.Confidence > MinQuoteConfidence {
			verdict.Confidence = MinQuoteConfidence
		}
		verdict.Reasoning = "no tourism context"
		return verdict, nil
	}

	if score.Total < MinQuoteConfidence {
		return verdict, nil
	}

	// High-confidence heuristic with a clear sender type skips the LLM.
	if score.Total >= ArbitrationHigh && sender.Type != domain.RequestTypeUnknown {
		verdict.IsQuote = true
		verdict.Actionable = score.Total >= ActionableThreshold
		return verdict, nil
	}

	// Arbitration window, or unclear sender type: ask the model.
	needsArbitration := (score.Total >= ArbitrationLow && score.Total < ArbitrationHigh) ||
		sender.Type == domain.RequestTypeUnknown
	if needsArbitration && c.llm != nil {
		llmVerdict, err := c.llm.ClassifyQuote(ctx, email)
		if err != nil {
			// LLM failure falls back to the heuristic verdict rather
			// than failing the email.
			c.log.WithMessage(email.ID).WithError(err).Warn("llm arbitration failed, using heuristics")
			verdict.IsQuote = score.Total >= ActionableThreshold
			verdict.Actionable = verdict.IsQuote
			return verdict, nil
		}
		return c.crossCheck(score, sender, llmVerdict), nil
	}

	// 30..39 without arbitration stays a non-quote.
	verdict.IsQuote = score.Total >= ArbitrationHigh
	verdict.Actionable = verdict.IsQuote && score.Total >= ActionableThreshold
	return verdict, nil
}

// crossCheck reconciles the heuristic score with the LLM verdict.
func (c *Classifier) crossCheck(score *domain.SignalScore, sender *domain.SenderVerdict, llm *out.LLMVerdict) *domain.ClassificationVerdict {
	verdict := &domain.ClassificationVerdict{
		Signals: append(score.SignalNames(), sender.Signals...),
		Source:  "cross-check",
		LLMUsed: true,
	}

	confidence := clampScore(llm.Confidence)

	switch {
	case !llm.IsQuote && score.Total >= StrongOverrideFloor:
		// Strong regex evidence outvotes an LLM "no". The verdict keeps
		// the higher of the two confidences.
		verdict.IsQuote = true
		verdict.Confidence = score.Total
		if confidence > verdict.Confidence {
			verdict.Confidence = confidence
		}
		verdict.Reasoning = "strong signals override llm rejection"

	case llm.IsQuote && confidence < ActionableThreshold && score.Total < HeuristicQuoteFloor:
		// A lukewarm LLM "yes" the rule engine never backed is noise;
		// the heuristic confidence stands.
		verdict.IsQuote = false
		verdict.Confidence = score.Total
		verdict.Reasoning = "llm yes too weak without heuristic support"

	default:
		verdict.IsQuote = llm.IsQuote
		verdict.Confidence = confidence
		verdict.Reasoning = llm.Reasoning
	}

	// Sender type: enough trade signals win over the model's guess.
	verdict.Type = llm.Type
	if sender.Hits >= B2BSignalFloor {
		verdict.Type = domain.RequestTypeB2B
	} else if verdict.Type == "" || verdict.Type == domain.RequestTypeUnknown {
		verdict.Type = sender.Type
	}

	verdict.Actionable = verdict.IsQuote && verdict.Confidence >= ActionableThreshold
	return verdict
}
