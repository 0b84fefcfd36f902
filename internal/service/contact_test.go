package service

import (
	"testing"

	"fundingportal/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFillTemplate(t *testing.T) {
	got := FillTemplate("[USER_NAME] / [APPLICATION_NUMBER] / [APPLICATION_NUMBER]", "ABCDEFG1", "Jean Dupont")
	assert.Equal(t, "Jean Dupont / ABCDEFG1 / ABCDEFG1", got)
	assert.Equal(t, "no placeholders", FillTemplate("no placeholders", "X", "Y"))
}

func TestBuildContactLinks(t *testing.T) {
	contact := &model.ContactPreference{
		WhatsAppNumber:          "+33 6 00 00 00 00",
		WhatsAppMessageTemplate: "Hi [USER_NAME], app [APPLICATION_NUMBER]",
		ContactEmail:            "support@example.com",
		EmailSubjectTemplate:    "Application [APPLICATION_NUMBER]",
		EmailBodyTemplate:       "Hello & thanks, [USER_NAME]",
	}

	links := BuildContactLinks(contact, "ABCDEFG1", "Jean Dupont")
	assert.Equal(t, "+33 6 00 00 00 00", links.WhatsAppNumber)
	assert.Equal(t, "https://wa.me/33600000000?text=Hi%20Jean%20Dupont%2C%20app%20ABCDEFG1", links.WhatsAppURL)
	assert.Equal(t, "support@example.com", links.ContactEmail)
	assert.Equal(t,
		"mailto:support@example.com?subject=Application%20ABCDEFG1&body=Hello%20%26%20thanks%2C%20Jean%20Dupont",
		links.EmailURL)
}

func TestBuildContactLinks_MissingChannels(t *testing.T) {
	assert.Equal(t, ContactLinks{}, BuildContactLinks(nil, "ABCDEFG1", "Jean"))

	links := BuildContactLinks(&model.ContactPreference{ContactEmail: "a@b.c"}, "ABCDEFG1", "Jean")
	assert.Empty(t, links.WhatsAppURL)
	assert.Equal(t, "mailto:a@b.c?subject=&body=", links.EmailURL)
}
