package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusUnderReview, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},

		{StatusDraft, StatusApproved, false},
		{StatusSubmitted, StatusDraft, false},
		{StatusSubmitted, StatusApproved, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusUnderReview, false},
		{"unknown", StatusSubmitted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Marie Curie", (&Application{FirstName: "Marie", LastName: "Curie"}).FullName())
	assert.Equal(t, "Marie", (&Application{FirstName: "Marie"}).FullName())
	assert.Equal(t, "Curie", (&Application{LastName: "Curie"}).FullName())
}

func TestIsDocumentType(t *testing.T) {
	for _, dt := range RequiredDocumentTypes {
		assert.True(t, IsDocumentType(dt))
	}
	assert.False(t, IsDocumentType("passport"))
	assert.False(t, IsDocumentType(""))
}
