package service

import (
	"context"
	"encoding/json"
	"fmt"

	"fundingportal/internal/model"
	"fundingportal/internal/repository"
	"fundingportal/internal/validation"
)

// PublicConfig is the read-only configuration fetched by the wizard and dashboard on load.
type PublicConfig struct {
	FundingTypes        []string     `json:"funding_types"`
	Contact             *ContactInfo `json:"contact"`
	MaxUploadBytes      int64        `json:"max_upload_bytes"`
	AllowedMimeTypes    []string     `json:"allowed_mime_types"`
	FundingReasonMaxLen int          `json:"funding_reason_max_length"`
}

// ContactInfo exposes the support channels without the message templates.
type ContactInfo struct {
	WhatsAppNumber string `json:"whatsapp_number"`
	ContactEmail   string `json:"contact_email"`
}

type ConfigService interface {
	FundingTypes(ctx context.Context) ([]string, error)
	// Contact returns the active contact preference, or nil when none is configured.
	Contact(ctx context.Context) (*model.ContactPreference, error)
	Public(ctx context.Context) (*PublicConfig, error)
}

type configService struct {
	repo           repository.ConfigRepository
	maxUploadBytes int64
}

func NewConfigService(repo repository.ConfigRepository, maxUploadBytes int64) ConfigService {
	return &configService{repo: repo, maxUploadBytes: maxUploadBytes}
}

func (s *configService) FundingTypes(ctx context.Context) ([]string, error) {
	row, err := s.repo.GetValue(ctx, model.ConfigKeyFundingTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to read funding types: %w", err)
	}
	if row == nil {
		return []string{}, nil
	}

	var types []string
	if err := json.Unmarshal([]byte(row.ConfigValue), &types); err != nil {
		return nil, fmt.Errorf("funding types are not a JSON string array: %w", err)
	}
	return types, nil
}

func (s *configService) Contact(ctx context.Context) (*model.ContactPreference, error) {
	contact, err := s.repo.ActiveContact(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read contact preferences: %w", err)
	}
	return contact, nil
}

func (s *configService) Public(ctx context.Context) (*PublicConfig, error) {
	types, err := s.FundingTypes(ctx)
	if err != nil {
		return nil, err
	}
	contact, err := s.Contact(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &PublicConfig{
		FundingTypes:        types,
		MaxUploadBytes:      s.maxUploadBytes,
		AllowedMimeTypes:    validation.AllowedMimeTypes,
		FundingReasonMaxLen: validation.FundingReasonMaxLen,
	}
	if contact != nil {
		cfg.Contact = &ContactInfo{WhatsAppNumber: contact.WhatsAppNumber, ContactEmail: contact.ContactEmail}
	}
	return cfg, nil
}
