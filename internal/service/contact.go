package service

import (
	"net/url"
	"strings"

	"fundingportal/internal/model"
)

// Template placeholders
const (
	PlaceholderApplicationNumber = "[APPLICATION_NUMBER]"
	PlaceholderUserName          = "[USER_NAME]"
)

// ContactLinks are the pre-filled deep links shown once an application is submitted.
type ContactLinks struct {
	WhatsAppNumber string `json:"whatsapp_number"`
	WhatsAppURL    string `json:"whatsapp_url"`
	ContactEmail   string `json:"contact_email"`
	EmailURL       string `json:"email_url"`
}

// FillTemplate substitutes every placeholder occurrence in tpl.
func FillTemplate(tpl, applicationNumber, userName string) string {
	return strings.NewReplacer(
		PlaceholderApplicationNumber, applicationNumber,
		PlaceholderUserName, userName,
	).Replace(tpl)
}

// BuildContactLinks renders the WhatsApp and mailto links for one application.
// A nil contact yields empty links.
func BuildContactLinks(contact *model.ContactPreference, applicationNumber, userName string) ContactLinks {
	if contact == nil {
		return ContactLinks{}
	}

	links := ContactLinks{
		WhatsAppNumber: contact.WhatsAppNumber,
		ContactEmail:   contact.ContactEmail,
	}
	if digits := onlyDigits(contact.WhatsAppNumber); digits != "" {
		msg := FillTemplate(contact.WhatsAppMessageTemplate, applicationNumber, userName)
		links.WhatsAppURL = "https://wa.me/" + digits + "?text=" + encodeComponent(msg)
	}
	if contact.ContactEmail != "" {
		subject := FillTemplate(contact.EmailSubjectTemplate, applicationNumber, userName)
		body := FillTemplate(contact.EmailBodyTemplate, applicationNumber, userName)
		links.EmailURL = "mailto:" + contact.ContactEmail +
			"?subject=" + encodeComponent(subject) +
			"&body=" + encodeComponent(body)
	}
	return links
}

// encodeComponent percent-encodes s for a query value, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
