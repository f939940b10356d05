// Package classification implements the layered quotation-request classifier.
package classification

import (
	"regexp"
	"strings"

	"quote_agent/core/domain"
)

// =============================================================================
// Signal Scorer
// =============================================================================

// Scoring thresholds. These are the tuned values the rest of the pipeline
// depends on; change them only together with the classifier tests.
const (
	// TourismGate is the minimum tourism-context score an email needs
	// before weak signals alone can keep it in play.
	TourismGate = 20

	// MinScore and MaxScore bound the clamped total.
	MinScore = 0
	MaxScore = 100
)

type signalPattern struct {
	pattern  *regexp.Regexp
	keywords []string // keyword pre-filter, cheaper than regex
	points   int
	source   string
	tourism  bool
	hardVeto bool
}

// SignalScorer scores emails with regex/keyword pattern tables.
// Scoring is pure: the same input always yields the same result.
type SignalScorer struct {
	strong   []signalPattern
	moderate []signalPattern
	weak     []signalPattern
	negative []signalPattern
}

// NewSignalScorer creates a scorer with the built-in pattern tables.
func NewSignalScorer() *SignalScorer {
	s := &SignalScorer{}
	s.initPatterns()
	return s
}

// Score evaluates every pattern table against the email.
// The clamped total lands in [0,100]; the raw sum is kept for diagnostics.
func (s *SignalScorer) Score(email *domain.EmailMessage) *domain.SignalScore {
	text := strings.ToLower(email.Text())

	result := &domain.SignalScore{}

	for _, table := range [][]signalPattern{s.strong, s.moderate, s.weak, s.negative} {
		for _, p := range table {
			if !matchPattern(&p, text) {
				continue
			}
			result.Signals = append(result.Signals, domain.Signal{Name: p.source, Points: p.points})
			result.RawTotal += p.points
			if p.tourism {
				result.TourismHits++
				result.TourismPoints += p.points
			}
			if p.points < 0 {
				result.NegativeHits++
			}
			if p.hardVeto {
				result.HardVeto = true
			}
		}
	}

	result.Total = clampScore(result.RawTotal)
	return result
}

func matchPattern(p *signalPattern, text string) bool {
	if len(p.keywords) > 0 {
		matched := false
		for _, kw := range p.keywords {
			if strings.Contains(text, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if p.pattern != nil {
		return p.pattern.MatchString(text)
	}
	return len(p.keywords) > 0
}

func clampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func (s *SignalScorer) initPatterns() {
	// Strong signals: explicit quotation intent. Spanish first, this is the
	// dominant inbound language, with English fallbacks.
	s.strong = []signalPattern{
		{
			pattern: regexp.MustCompile(`(cotizaci[oó]n|cotizar|presupuesto para|solicit\w+ (una )?cotizaci[oó]n|quote for|quotation|request (a )?quote)`),
			points:  90,
			source:  "strong:quote-request",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(itinerario|paquete tur[ií]stico|programa de viaje|tour package|travel package|itinerary)`),
			points:  85,
			source:  "strong:itinerary-request",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(viaje (en )?grupo|grupo de \d+|group (trip|travel|tour)|group of \d+)`),
			points:  80,
			source:  "strong:group-travel",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(planear (un |nuestro )?viaje|organizar (un |nuestro )?viaje|plan(ning)? (a |our )?trip|organize (a |our )?trip)`),
			points:  85,
			source:  "strong:trip-planning",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`((precio|costo|tarifa|cu[aá]nto (cuesta|sale|cobran))\b.{0,80}(viaje|tour|excursi[oó]n|paquete)|(price|cost|rate)s?\b.{0,80}(trip|tour|package))`),
			points:  80,
			source:  "strong:price-request",
			tourism: true,
		},
	}

	// Moderate signals: trip facts that usually accompany a real request.
	s.moderate = []signalPattern{
		{
			pattern: regexp.MustCompile(`(per[uú]|cusco|machu ?picchu|valle sagrado|lima|arequipa|puno|titicaca|paracas|nazca|iquitos|amazon[ai]s?|patagonia|galapagos|sacred valley)`),
			points:  60,
			source:  "moderate:destination",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(\d+\s*(adultos?|personas?|pasajeros?|pax|ni[nñ]os?)|\d+\s*(adults?|people|passengers|travel+ers|children|kids))`),
			points:  65,
			source:  "moderate:traveler-count",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(del?\s+\d{1,2}\s+(de\s+)?\w+\s+(al?|hasta)\s+\d{1,2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|from\s+\w+\s+\d{1,2}\s+to|(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre|january|february|march|april|june|july|august|september|october|november|december)\s+\d{4})`),
			points:  55,
			source:  "moderate:date-range",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(presupuesto|budget|usd|u\$s|\$\s?\d|€\s?\d|d[oó]lares|euros|soles)`),
			points:  50,
			source:  "moderate:budget",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`(hotel(es)?|hospedaje|alojamiento|hostal|lodge|accommodation|lodging|resort)`),
			points:  40,
			source:  "moderate:accommodation",
			tourism: true,
		},
	}

	// Weak signals: tourism flavour without commitment.
	s.weak = []signalPattern{
		{
			pattern: regexp.MustCompile(`(estimad[oa]s?\s+(agencia|equipo)|buen[oa]s\s+(d[ií]as|tardes)|dear\s+(travel\s+)?(agency|team))`),
			points:  25,
			source:  "weak:agency-greeting",
		},
		{
			pattern: regexp.MustCompile(`(turismo|tur[ií]stic[oa]|vacaciones|luna de miel|aventura|trekking|caminata|tourism|vacation|honeymoon|adventure|hiking|sightseeing)`),
			points:  30,
			source:  "weak:tourism-vocab",
			tourism: true,
		},
		{
			pattern: regexp.MustCompile(`((qu[eé]|cu[aá]les)\s+(servicios|tours|excursiones)|what\s+(services|tours)\s+do\s+you)`),
			points:  35,
			source:  "weak:services-question",
			tourism: true,
		},
	}

	// Negative signals: vetoes for mail that merely mentions travel.
	s.negative = []signalPattern{
		{
			pattern: regexp.MustCompile(`(newsletter|bolet[ií]n|unsubscribe|darse de baja|cancelar suscripci[oó]n|ofertas? exclusivas?|descuento del? \d+%|promoci[oó]n especial)`),
			points:  -80,
			source:  "negative:newsletter-promo",
		},
		{
			pattern: regexp.MustCompile(`(factura|invoice|recibo|receipt|comprobante de pago|payment (confirmation|received)|n[uú]mero de factura)`),
			points:  -70,
			source:  "negative:invoice-receipt",
		},
		{
			pattern:  regexp.MustCompile(`(no.?reply|notificaci[oó]n autom[aá]tica|mensaje autom[aá]tico|automated (message|notification)|do not reply|this is an automatic)`),
			points:   -90,
			source:   "negative:automated",
			hardVeto: true,
		},
		{
			pattern: regexp.MustCompile(`(curr[ií]culum|postulaci[oó]n|busco (trabajo|empleo)|aplico? (a|para) (el|la) (puesto|vacante)|job application|resume attached|cover letter)`),
			points:  -60,
			source:  "negative:job-application",
		},
		{
			pattern: regexp.MustCompile(`(servicios de (marketing|seo|dise[nñ]o web)|aumentar sus ventas|propuesta comercial de|grow your (business|sales)|seo services|web design services)`),
			points:  -50,
			source:  "negative:unrelated-commercial",
		},
	}
}
