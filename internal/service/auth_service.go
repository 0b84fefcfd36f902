package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fundingportal/internal/metrics"
	"fundingportal/internal/model"
	"fundingportal/internal/repository"
	"fundingportal/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs

type RegisterRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type RegisterResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	PIN     string    `json:"pin"`
	Message string    `json:"message"`
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	PIN         string `json:"pin"`
}

// LoginResponse either carries a session or, when PINRegenerated is set, a new PIN
// the user must record before logging in again.
type LoginResponse struct {
	UserID         uuid.UUID  `json:"user_id"`
	SessionToken   string     `json:"session_token,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Role           string     `json:"role,omitempty"`
	PINRegenerated bool       `json:"pin_regenerated"`
	NewPIN         string     `json:"new_pin,omitempty"`
	Redirect       *Redirect  `json:"redirect,omitempty"`
	Message        string     `json:"message,omitempty"`
}

type SessionInfo struct {
	IsValid   bool      `json:"is_valid"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ClientMeta is recorded on the session row for auditing.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AuthConfig tunes token lifetime and the PIN regeneration policy.
type AuthConfig struct {
	Secret            []byte
	SessionTTL        time.Duration
	PINMaxAge         time.Duration
	MaxFailedAttempts int
	AdminPhones       []string
	BcryptCost        int
}

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Authenticate(ctx context.Context, req LoginRequest, meta ClientMeta) (*LoginResponse, error)
	ValidateSession(ctx context.Context, token string) (*SessionInfo, error)
	// Logout revokes the session behind token. Unknown or empty tokens are not an error.
	Logout(ctx context.Context, token string) error
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	tx        repository.TransactionManager
	users     repository.UserRepository
	sessions  repository.SessionRepository
	apps      repository.ApplicationRepository
	audit     repository.AuditRepository
	validator *validation.Validator
	metrics   *metrics.Metrics
	cfg       AuthConfig
	now       func() time.Time
	log       zerolog.Logger
}

func NewAuthService(
	tx repository.TransactionManager,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	apps repository.ApplicationRepository,
	audit repository.AuditRepository,
	v *validation.Validator,
	cfg AuthConfig,
	opts Options,
) AuthService {
	opts = opts.withDefaults()
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &authService{
		tx:        tx,
		users:     users,
		sessions:  sessions,
		apps:      apps,
		audit:     audit,
		validator: v,
		metrics:   opts.Metrics,
		cfg:       cfg,
		now:       opts.Now,
		log:       opts.Logger.With().Str("component", "auth").Logger(),
	}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	if err := s.validator.Phone(validation.Phone{PhoneNumber: phone}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPhoneFormat, err)
	}

	pin, hash, err := s.newPIN()
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, findErr := s.users.GetByPhone(txCtx, phone)
		if findErr == nil {
			return ErrPhoneAlreadyRegistered
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up phone number: %w", findErr)
		}

		user = &model.User{
			PhoneNumber: phone,
			PINHash:     hash,
			PINSetAt:    s.now(),
			Role:        s.roleFor(phone),
			IsActive:    true,
		}
		if createErr := s.users.Create(txCtx, user); createErr != nil {
			return fmt.Errorf("failed to create user: %w", createErr)
		}

		return s.audit.Record(txCtx, &user.ID, model.ActionRegister, user.ID.String(), maskPhone(phone), nil)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return &RegisterResponse{
		UserID:  user.ID,
		PIN:     pin,
		Message: "Registration successful. Keep your PIN safe, it is shown only once.",
	}, nil
}

func (s *authService) Authenticate(ctx context.Context, req LoginRequest, meta ClientMeta) (*LoginResponse, error) {
	creds := validation.Credentials{PhoneNumber: strings.TrimSpace(req.PhoneNumber), PIN: strings.TrimSpace(req.PIN)}
	if err := s.validator.Credentials(creds); err != nil {
		verrs, _ := validation.AsErrors(err)
		if verrs.Has("phone_number") {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPhoneFormat, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPINFormat, err)
	}

	var (
		resp   *LoginResponse
		failed bool
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByPhoneForUpdate(txCtx, creds.PhoneNumber)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failed = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if !user.IsActive {
			failed = true
			return nil
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(creds.PIN)) != nil {
			failed = true
			user.FailedPINAttempts++
			return s.users.Update(txCtx, user)
		}

		now := s.now()
		if s.mustRegenerate(user, now) {
			pin, hash, pinErr := s.newPIN()
			if pinErr != nil {
				return pinErr
			}
			reason := "pin_expired"
			if s.cfg.MaxFailedAttempts > 0 && user.FailedPINAttempts >= s.cfg.MaxFailedAttempts {
				reason = "failed_attempts"
			}
			user.PINHash = hash
			user.PINSetAt = now
			user.FailedPINAttempts = 0
			if updErr := s.users.Update(txCtx, user); updErr != nil {
				return fmt.Errorf("failed to store regenerated PIN: %w", updErr)
			}
			if auditErr := s.audit.Record(txCtx, &user.ID, model.ActionPINRegenerated, user.ID.String(), maskPhone(user.PhoneNumber),
				map[string]interface{}{"reason": reason}); auditErr != nil {
				return auditErr
			}
			resp = &LoginResponse{
				UserID:         user.ID,
				PINRegenerated: true,
				NewPIN:         pin,
				Message:        "Your PIN has been regenerated. Record the new PIN and log in again.",
			}
			return nil
		}

		user.FailedPINAttempts = 0
		user.LastLogin = &now
		if role := s.roleFor(user.PhoneNumber); role == model.RoleAdmin {
			user.Role = role
		}
		if updErr := s.users.Update(txCtx, user); updErr != nil {
			return fmt.Errorf("failed to update user: %w", updErr)
		}

		token, session, tokErr := s.issueSession(user, now, meta)
		if tokErr != nil {
			return tokErr
		}
		if createErr := s.sessions.Create(txCtx, session); createErr != nil {
			return fmt.Errorf("failed to create session: %w", createErr)
		}
		if auditErr := s.audit.Record(txCtx, &user.ID, model.ActionLogin, user.ID.String(), maskPhone(user.PhoneNumber),
			map[string]interface{}{"ip_address": meta.IPAddress}); auditErr != nil {
			return auditErr
		}

		latest, latestErr := s.apps.Latest(txCtx, user.ID)
		if latestErr != nil {
			return fmt.Errorf("failed to load latest application: %w", latestErr)
		}
		redirect := RedirectFor(latest)

		resp = &LoginResponse{
			UserID:       user.ID,
			SessionToken: token,
			ExpiresAt:    &session.ExpiresAt,
			Role:         user.Role,
			Redirect:     &redirect,
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveLogin("error")
		return nil, err
	}
	if failed {
		s.metrics.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if resp.PINRegenerated {
		s.metrics.ObserveLogin("pin_regenerated")
		s.log.Info().Str("user_id", resp.UserID.String()).Msg("PIN regenerated on login")
		return resp, nil
	}

	s.metrics.ObserveLogin("success")
	return resp, nil
}

func (s *authService) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessions.GetByTokenHash(ctx, hashToken(token))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Active(s.now()) || !session.User.IsActive {
		return nil, ErrSessionInvalid
	}

	return &SessionInfo{
		IsValid:   true,
		UserID:    session.UserID,
		Role:      session.User.Role,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := hashToken(token)

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		session, err := s.sessions.GetByTokenHash(txCtx, hash)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}

		revoked, err := s.sessions.Revoke(txCtx, hash, s.now())
		if err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
		if !revoked {
			return nil
		}
		return s.audit.Record(txCtx, &session.UserID, model.ActionLogout, session.UserID.String(), "", nil)
	})
}

// mustRegenerate applies the PIN rotation policy to a correctly presented PIN.
func (s *authService) mustRegenerate(user *model.User, now time.Time) bool {
	if s.cfg.MaxFailedAttempts > 0 && user.FailedPINAttempts >= s.cfg.MaxFailedAttempts {
		return true
	}
	return s.cfg.PINMaxAge > 0 && now.Sub(user.PINSetAt) > s.cfg.PINMaxAge
}

func (s *authService) issueSession(user *model.User, now time.Time, meta ClientMeta) (string, *model.Session, error) {
	session := &model.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		IPAddress: truncate(meta.IPAddress, 64),
		UserAgent: truncate(meta.UserAgent, 512),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	session.TokenHash = hashToken(signed)
	return signed, session, nil
}

func (s *authService) newPIN() (pin, hash string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate PIN: %w", err)
	}
	pin = fmt.Sprintf("%06d", n.Int64())
	raw, err := bcrypt.GenerateFromPassword([]byte(pin), s.cfg.BcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return pin, string(raw), nil
}

func (s *authService) roleFor(phone string) string {
	for _, admin := range s.cfg.AdminPhones {
		if admin == phone {
			return model.RoleAdmin
		}
	}
	return model.RoleUser
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// maskPhone keeps the country prefix and the last two digits.
func maskPhone(phone string) string {
	if len(phone) <= 5 {
		return phone
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
