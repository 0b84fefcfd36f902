package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"fundingportal/internal/model"
	"fundingportal/internal/validation"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func TestAuth_RegisterLoginScenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: "+33612345678"})
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, reg.PIN)

	login, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: reg.PIN}, ClientMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.False(t, login.PINRegenerated)
	assert.Empty(t, login.NewPIN)
	assert.NotEmpty(t, login.SessionToken)
	require.NotNil(t, login.ExpiresAt)
	assert.Equal(t, reg.UserID, login.UserID)
	assert.Equal(t, model.RoleUser, login.Role)

	wrong := "000000"
	if reg.PIN == wrong {
		wrong = "111111"
	}
	bad, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: wrong}, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, bad)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.LoginAttempts.WithLabelValues("invalid_credentials")))
}

func TestAuth_RegisterRejectsBadPhone(t *testing.T) {
	e := newTestEnv(t)

	for _, phone := range []string{"33612345678", "+0612345678", "+33 6 12", "+3361234567890123", ""} {
		_, err := e.auth.Register(context.Background(), RegisterRequest{PhoneNumber: phone})
		require.ErrorIs(t, err, ErrInvalidPhoneFormat, phone)
		verrs, ok := validation.AsErrors(err)
		require.True(t, ok, phone)
		assert.True(t, verrs.Has("phone_number"), phone)
	}
}

func TestAuth_RegisterTwice(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "+33612345678")

	_, err := e.auth.Register(context.Background(), RegisterRequest{PhoneNumber: "+33612345678"})
	assert.ErrorIs(t, err, ErrPhoneAlreadyRegistered)
}

func TestAuth_LoginValidatesFormat(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "0612", PIN: "123456"}, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidPhoneFormat)

	_, err = e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: "12ab56"}, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidPINFormat)
	verrs, _ := validation.AsErrors(err)
	assert.Equal(t, validation.CodeOTPNumbers, verrs.Code("pin"))

	_, err = e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: "123"}, ClientMeta{})
	verrs, _ = validation.AsErrors(err)
	assert.Equal(t, validation.CodeOTPLength, verrs.Code("pin"))
}

func TestAuth_UnknownPhoneIsInvalidCredentials(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.auth.Authenticate(context.Background(), LoginRequest{PhoneNumber: "+33699999999", PIN: "123456"}, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_PINRegeneratedAfterFailedAttempts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: "+33612345678"})
	require.NoError(t, err)

	wrong := "000000"
	if reg.PIN == wrong {
		wrong = "111111"
	}
	for i := 0; i < 3; i++ {
		_, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: wrong}, ClientMeta{})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	resp, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: reg.PIN}, ClientMeta{})
	require.NoError(t, err)
	assert.True(t, resp.PINRegenerated)
	assert.Regexp(t, sixDigits, resp.NewPIN)
	assert.Empty(t, resp.SessionToken, "no session is issued with a regenerated PIN")

	again, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: resp.NewPIN}, ClientMeta{})
	require.NoError(t, err)
	assert.False(t, again.PINRegenerated)
	assert.NotEmpty(t, again.SessionToken)

	user, err := e.users.GetByPhone(ctx, "+33612345678")
	require.NoError(t, err)
	assert.Zero(t, user.FailedPINAttempts)
}

func TestAuth_PINRegeneratedWhenExpired(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: "+33612345678"})
	require.NoError(t, err)

	e.clock.Advance(91 * 24 * time.Hour)
	resp, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: reg.PIN}, ClientMeta{})
	require.NoError(t, err)
	assert.True(t, resp.PINRegenerated)
	assert.Nil(t, resp.ExpiresAt)
}

func TestAuth_SessionLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: "+33612345678"})
	require.NoError(t, err)
	login, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: reg.PIN}, ClientMeta{})
	require.NoError(t, err)

	info, err := e.auth.ValidateSession(ctx, login.SessionToken)
	require.NoError(t, err)
	assert.True(t, info.IsValid)
	assert.Equal(t, reg.UserID, info.UserID)
	assert.Equal(t, model.RoleUser, info.Role)

	_, err = e.auth.ValidateSession(ctx, "")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = e.auth.ValidateSession(ctx, login.SessionToken+"x")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	require.NoError(t, e.auth.Logout(ctx, login.SessionToken))
	_, err = e.auth.ValidateSession(ctx, login.SessionToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	require.NoError(t, e.auth.Logout(ctx, login.SessionToken), "logout is idempotent")
	require.NoError(t, e.auth.Logout(ctx, ""))
	require.NoError(t, e.auth.Logout(ctx, "not-a-token"))
}

func TestAuth_SessionExpires(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: "+33612345678"})
	require.NoError(t, err)
	login, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: reg.PIN}, ClientMeta{})
	require.NoError(t, err)

	e.clock.Advance(2 * time.Hour)
	_, err = e.auth.ValidateSession(ctx, login.SessionToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestAuth_AdminPhoneGetsAdminRole(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: testAdminPhone})
	require.NoError(t, err)
	login, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: testAdminPhone, PIN: reg.PIN}, ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, login.Role)

	info, err := e.auth.ValidateSession(ctx, login.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, info.Role)
}

func TestAuth_LoginRedirect(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.auth.Register(ctx, RegisterRequest{PhoneNumber: "+33612345678"})
	require.NoError(t, err)
	login := func() *Redirect {
		resp, err := e.auth.Authenticate(ctx, LoginRequest{PhoneNumber: "+33612345678", PIN: reg.PIN}, ClientMeta{})
		require.NoError(t, err)
		return resp.Redirect
	}

	assert.Equal(t, &Redirect{Path: "/application/step-0", Reason: RedirectNewUser}, login())

	created, err := e.wizard.StartDraft(ctx, reg.UserID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	_, err = e.wizard.SavePersonalInfo(ctx, reg.UserID, created.Application.ID, validPersonalInfo())
	require.NoError(t, err)
	assert.Equal(t, &Redirect{Path: "/application/step-2", Reason: RedirectIncompleteApplication}, login())

	_, err = e.wizard.Submit(ctx, reg.UserID, created.Application.ID, validFinancialDetails())
	require.NoError(t, err)
	assert.Equal(t, &Redirect{Path: "/dashboard", Reason: RedirectHasApplication}, login())
}

func TestRedirectFor(t *testing.T) {
	tests := []struct {
		name string
		app  *model.Application
		want Redirect
	}{
		{"no application", nil, Redirect{"/application/step-0", RedirectNewUser}},
		{"fresh draft", &model.Application{Status: model.StatusDraft}, Redirect{"/application/step-0", RedirectIncompleteApplication}},
		{"draft at step 1", &model.Application{Status: model.StatusDraft, CurrentStep: 1}, Redirect{"/application/step-1", RedirectIncompleteApplication}},
		{"draft past the last step", &model.Application{Status: model.StatusDraft, CurrentStep: 4}, Redirect{"/dashboard", RedirectHasApplication}},
		{"rejected", &model.Application{Status: model.StatusRejected}, Redirect{"/dashboard", RedirectHasApplication}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedirectFor(tt.app))
		})
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+33*******78", maskPhone("+33612345678"))
	assert.Equal(t, "+331", maskPhone("+331"))
}
