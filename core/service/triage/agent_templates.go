package triage

import (
	"fmt"
	"strings"

	"quote_agent/core/domain"
)

// =============================================================================
// Email Templates
// =============================================================================

// AgencyIdentity is the sender identity used in outgoing mail.
type AgencyIdentity struct {
	Name      string
	Email     string
	Signature string
	Phone     string
}

// fieldDescriptions maps internal field names to the Spanish wording used
// when asking the requester for missing information.
var fieldDescriptions = map[string]string{
	FieldClientName:     "su nombre completo",
	FieldClientEmail:    "un correo electrónico de contacto",
	FieldDestination:    "el destino que desean visitar",
	FieldStartDate:      "la fecha de inicio del viaje",
	FieldEndDate:        "la fecha de regreso o la duración del viaje",
	FieldPreferredMonth: "el mes aproximado en que desean viajar",
	FieldTravelers:      "el número de viajeros (adultos y niños)",
	FieldAdults:         "cuántos adultos viajan",
	FieldChildren:       "cuántos niños viajan y sus edades",
	FieldBudget:         "el presupuesto aproximado por persona o total",
	FieldInterests:      "sus intereses (cultura, aventura, gastronomía, naturaleza...)",
	FieldDietary:        "preferencias o restricciones alimentarias",
}

// FieldDescription returns the Spanish description for a field name.
// Unknown fields fall back to the raw name so the email never breaks.
func FieldDescription(field string) string {
	if desc, ok := fieldDescriptions[field]; ok {
		return desc
	}
	return field
}

// RenderMissingInfoEmail builds the first request for missing details.
func RenderMissingInfoEmail(q *domain.Quotation, agency AgencyIdentity) (subject, body string) {
	subject = fmt.Sprintf("Re: su solicitud de viaje [%s]", q.ID)

	var sb strings.Builder
	sb.WriteString(greeting(q.Contact.Name))
	sb.WriteString("\n\n")
	sb.WriteString("¡Gracias por contactarnos! Hemos recibido su solicitud de cotización")
	if q.Trip.Destination != "" {
		sb.WriteString(fmt.Sprintf(" para %s", q.Trip.Destination))
	}
	sb.WriteString(" y nos encantaría preparar una propuesta a su medida.\n\n")
	sb.WriteString("Para avanzar, ¿podría confirmarnos los siguientes datos?\n\n")

	for _, field := range q.MissingFields {
		sb.WriteString(fmt.Sprintf("  - %s\n", capitalize(FieldDescription(field))))
	}

	sb.WriteString("\nEn cuanto tengamos esta información le enviaremos una cotización detallada.\n\n")
	sb.WriteString(signature(agency))

	return subject, sb.String()
}

// RenderReminderEmail builds a follow-up reminder for an unanswered request.
func RenderReminderEmail(f *domain.FollowUpRecord, contactName string, agency AgencyIdentity) (subject, body string) {
	subject = fmt.Sprintf("Re: su solicitud de viaje [%s]", f.QuotationID)

	var sb strings.Builder
	sb.WriteString(greeting(contactName))
	sb.WriteString("\n\n")
	sb.WriteString("Le escribimos nuevamente sobre su solicitud de cotización. ")
	sb.WriteString("Seguimos a su disposición y solo nos falta la siguiente información para preparar su propuesta:\n\n")

	for _, field := range f.MissingFields {
		sb.WriteString(fmt.Sprintf("  - %s\n", capitalize(FieldDescription(field))))
	}

	sb.WriteString("\nSi ya no está interesado, no hay problema: puede ignorar este mensaje.\n\n")
	sb.WriteString(signature(agency))

	return subject, sb.String()
}

func greeting(name string) string {
	if name == "" {
		return "Estimado/a viajero/a:"
	}
	return fmt.Sprintf("Estimado/a %s:", name)
}

func signature(agency AgencyIdentity) string {
	var sb strings.Builder
	sb.WriteString("Saludos cordiales,\n")
	sb.WriteString(agency.Signature)
	sb.WriteString("\n")
	sb.WriteString(agency.Name)
	if agency.Phone != "" {
		sb.WriteString("\nTel: " + agency.Phone)
	}
	if agency.Email != "" {
		sb.WriteString("\n" + agency.Email)
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
