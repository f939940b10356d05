package classification

import (
	"regexp"
	"strings"

	"quote_agent/core/domain"
)

// =============================================================================
// B2B Detector
// =============================================================================

// B2BSignalFloor is the number of trade signals required to call a sender B2B
// outright, without LLM arbitration.
const B2BSignalFloor = 2

type b2bPattern struct {
	pattern *regexp.Regexp
	source  string
}

// B2BDetector separates trade (agency/operator) senders from direct travelers.
type B2BDetector struct {
	patterns    []b2bPattern
	freeDomains map[string]bool
}

// NewB2BDetector creates a detector with the built-in trade vocabulary.
func NewB2BDetector() *B2BDetector {
	return &B2BDetector{
		patterns: []b2bPattern{
			{
				pattern: regexp.MustCompile(`(somos una (agencia|operadora|mayorista)|agencia de viajes|tour operator|operador(a)? tur[ií]stic[oa]|we are a (travel )?agency|dmc\b|wholesaler)`),
				source:  "b2b:self-identified",
			},
			{
				pattern: regexp.MustCompile(`((para|de) (nuestros?|mis) (clientes?|pasajeros?)|on behalf of (our|my) clients?|for (our|my) clients?)`),
				source:  "b2b:on-behalf",
			},
			{
				pattern: regexp.MustCompile(`(comisi[oó]n|tarifa (neta|confidencial)|net rate|commission|fit\b|series? de grupos|group series|allotment)`),
				source:  "b2b:trade-terms",
			},
			{
				pattern: regexp.MustCompile(`(salidas? regulares|tarifario|release\b|rooming list|cupo)`),
				source:  "b2b:operations-vocab",
			},
		},
		freeDomains: map[string]bool{
			"gmail.com":   true,
			"hotmail.com": true,
			"outlook.com": true,
			"yahoo.com":   true,
			"icloud.com":  true,
			"live.com":    true,
		},
	}
}

// Detect inspects body vocabulary and the sender domain.
func (d *B2BDetector) Detect(email *domain.EmailMessage) *domain.SenderVerdict {
	text := strings.ToLower(email.Text())

	verdict := &domain.SenderVerdict{Type: domain.RequestTypeUnknown}

	for _, p := range d.patterns {
		if p.pattern.MatchString(text) {
			verdict.Hits++
			verdict.Signals = append(verdict.Signals, p.source)
		}
	}

	// A corporate sender domain is supporting evidence, never decisive:
	// plenty of direct travelers write from work addresses.
	if dom := senderDomain(email.FromEmail); dom != "" && !d.freeDomains[dom] {
		verdict.Signals = append(verdict.Signals, "b2b:corporate-domain")
	}

	switch {
	case verdict.Hits >= B2BSignalFloor:
		verdict.Type = domain.RequestTypeB2B
	case verdict.Hits == 1:
		verdict.Type = domain.RequestTypeUnknown
	default:
		verdict.Type = domain.RequestTypeB2C
	}

	return verdict
}

func senderDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
