package service

import (
	"context"
	"testing"

	"fundingportal/internal/model"
	"fundingportal/internal/validation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileAudits(t *testing.T, e *testEnv) []AuditLogResponse {
	t.Helper()
	logs, _, err := NewAuditService(e.audit).GetAuditLogs(context.Background(), 1, 50)
	require.NoError(t, err)
	var out []AuditLogResponse
	for _, l := range logs {
		if l.Action == model.ActionUpdateProfile {
			out = append(out, l)
		}
	}
	return out
}

func TestProfile_GetFreshAccount(t *testing.T) {
	e := newTestEnv(t)
	userID := e.register(t, "+33612345678")

	p, err := e.profiles.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, "+33612345678", p.PhoneNumber)
	assert.Equal(t, model.RoleUser, p.Role)
	assert.Empty(t, p.FirstName)
	assert.Empty(t, p.Email)
}

func TestProfile_UpdateNormalizesAndAudits(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	p, err := e.profiles.Update(ctx, userID, validation.Profile{FirstName: " Jean ", LastName: "Dupont", Email: "Jean@Example.COM"})
	require.NoError(t, err)
	assert.Equal(t, "Jean", p.FirstName)
	assert.Equal(t, "jean@example.com", p.Email)

	stored, err := e.users.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Dupont", stored.LastName)
	assert.Equal(t, "jean@example.com", stored.Email)

	audits := profileAudits(t, e)
	require.Len(t, audits, 1)
	assert.Equal(t, userID.String(), audits[0].EntityID)
	assert.Contains(t, audits[0].Details, `"fields":["email","first_name","last_name"]`)

	_, err = e.profiles.Update(ctx, userID, validation.Profile{FirstName: "Jean", LastName: "Dupont", Email: "jean@example.com"})
	require.NoError(t, err)
	assert.Len(t, profileAudits(t, e), 1, "an unchanged profile is not audited")

	p, err = e.profiles.Update(ctx, userID, validation.Profile{FirstName: "Jean", LastName: "Dupont"})
	require.NoError(t, err)
	assert.Empty(t, p.Email, "an empty field clears the stored value")
	audits = profileAudits(t, e)
	require.Len(t, audits, 2)
	details := []string{audits[0].Details, audits[1].Details}
	assert.Contains(t, details, `{"fields":["email"]}`)
}

func TestProfile_UpdateRejectsInvalidInput(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	_, err := e.profiles.Update(ctx, userID, validation.Profile{FirstName: "J", Email: "nope"})
	verrs, ok := validation.AsErrors(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, validation.CodeMinLength, verrs.Code("first_name"))
	assert.Equal(t, validation.CodeInvalidEmail, verrs.Code("email"))

	p, err := e.profiles.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, p.FirstName)
	assert.Empty(t, profileAudits(t, e))
}

func TestProfile_UnknownUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.profiles.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = e.profiles.Update(ctx, uuid.New(), validation.Profile{FirstName: "Jean"})
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
