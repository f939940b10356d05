package classification

import (
	"testing"

	"quote_agent/core/domain"
)

func TestSignalScorer(t *testing.T) {
	scorer := NewSignalScorer()

	tests := []struct {
		name         string
		subject      string
		body         string
		wantMinTotal int
		wantMaxTotal int
		wantSignal   string
		wantVeto     bool
	}{
		{
			name:         "explicit spanish quote request scores strong",
			subject:      "Solicitud de cotización",
			body:         "Buenos días, quisiera una cotización para un viaje a Cusco para 4 personas en julio 2026.",
			wantMinTotal: 90,
			wantMaxTotal: 100,
			wantSignal:   "strong:quote-request",
		},
		{
			name:         "english group inquiry scores strong",
			subject:      "Group trip to Machu Picchu",
			body:         "Hello, we are planning a trip for a group of 12 people and need a quote for the tour package.",
			wantMinTotal: 80,
			wantMaxTotal: 100,
			wantSignal:   "strong:group-travel",
		},
		{
			name:         "newsletter with travel vocabulary stays low",
			subject:      "Ofertas exclusivas de vacaciones!",
			body:         "Descuento del 50% en hoteles. Unsubscribe aquí para cancelar suscripción.",
			wantMinTotal: 0,
			wantMaxTotal: 29,
			wantSignal:   "negative:newsletter-promo",
		},
		{
			name:       "automated notification trips the hard veto",
			subject:    "Notificación automática",
			body:       "Este es un mensaje automático, no responder. Su reserva fue procesada.",
			wantVeto:   true,
			wantSignal: "negative:automated",
		},
		{
			name:         "invoice mentioning a trip is penalized",
			subject:      "Factura 00123",
			body:         "Adjuntamos la factura por su viaje a Lima. Comprobante de pago incluido.",
			wantMinTotal: 0,
			wantMaxTotal: 60,
			wantSignal:   "negative:invoice-receipt",
		},
		{
			name:         "unrelated business email scores zero",
			subject:      "Reunión del lunes",
			body:         "Te confirmo la reunión del lunes a las 10am en la oficina.",
			wantMinTotal: 0,
			wantMaxTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &domain.EmailMessage{Subject: tt.subject, Body: tt.body}
			got := scorer.Score(email)

			if got.Total < tt.wantMinTotal || got.Total > tt.wantMaxTotal {
				if !tt.wantVeto {
					t.Errorf("Total = %d, want in [%d,%d] (signals: %v)",
						got.Total, tt.wantMinTotal, tt.wantMaxTotal, got.SignalNames())
				}
			}
			if got.HardVeto != tt.wantVeto {
				t.Errorf("HardVeto = %v, want %v", got.HardVeto, tt.wantVeto)
			}
			if tt.wantSignal != "" && !hasSignal(got.SignalNames(), tt.wantSignal) {
				t.Errorf("signals %v missing %q", got.SignalNames(), tt.wantSignal)
			}
		})
	}
}

func TestSignalScorerBounds(t *testing.T) {
	scorer := NewSignalScorer()

	// Every strong and moderate signal at once must still clamp to 100.
	email := &domain.EmailMessage{
		Subject: "Cotización itinerario grupo",
		Body: "Somos un grupo de 8 personas, queremos cotizar un paquete turístico a Machu Picchu " +
			"del 10 de julio al 20 de julio. Presupuesto USD 3000 por persona, hotel 4 estrellas. " +
			"Queremos planear un viaje de aventura y trekking.",
	}
	got := scorer.Score(email)
	if got.Total < MinScore || got.Total > MaxScore {
		t.Fatalf("Total = %d, want within [%d,%d]", got.Total, MinScore, MaxScore)
	}
	if got.RawTotal <= MaxScore {
		t.Errorf("RawTotal = %d, expected raw sum above the clamp for this input", got.RawTotal)
	}
}

func TestSignalScorerDeterministic(t *testing.T) {
	scorer := NewSignalScorer()
	email := &domain.EmailMessage{
		Subject: "Cotización para 2 adultos",
		Body:    "Quisiera una cotización para visitar Cusco en marzo 2026.",
	}

	first := scorer.Score(email)
	for i := 0; i < 5; i++ {
		again := scorer.Score(email)
		if again.Total != first.Total || again.RawTotal != first.RawTotal ||
			len(again.Signals) != len(first.Signals) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func hasSignal(signals []string, name string) bool {
	for _, s := range signals {
		if s == name {
			return true
		}
	}
	return false
}
