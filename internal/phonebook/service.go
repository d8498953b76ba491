package phonebook

import (
	"context"
	"errors"
	"strings"

	"voicecampaign_backend/platform/apperr"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/phone"
)

// Service implements saved phone number use cases.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates a new phonebook service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Save normalizes and stores one phone number.
func (s *Service) Save(ctx context.Context, phoneNumber, label, numberType string) (SavedNumber, error) {
	normalized := phone.NormalizeE164(phoneNumber)
	if normalized == "" {
		return SavedNumber{}, apperr.Validation("phone number is required")
	}
	if numberType != TypeRecipient && numberType != TypeFrom {
		return SavedNumber{}, apperr.Validation("number type must be 'recipient' or 'from'")
	}

	saved, err := s.repo.Upsert(ctx, normalized, strings.TrimSpace(label), numberType)
	if err != nil {
		return SavedNumber{}, apperr.Wrap(apperr.KindInternal, "save phone number", err)
	}
	return saved, nil
}

// BulkImport saves many numbers of one type, skipping unusable entries.
// Returns how many were stored.
func (s *Service) BulkImport(ctx context.Context, phoneNumbers []string, numberType string) (int, error) {
	if numberType != TypeRecipient && numberType != TypeFrom {
		return 0, apperr.Validation("number type must be 'recipient' or 'from'")
	}

	imported := 0
	for _, raw := range phoneNumbers {
		normalized := phone.NormalizeE164(raw)
		if normalized == "" {
			continue
		}
		if _, err := s.repo.Upsert(ctx, normalized, "", numberType); err != nil {
			s.log.Warn("bulk import skipped number", "phone", normalized, "error", err)
			continue
		}
		imported++
	}
	return imported, nil
}

// List returns saved numbers, optionally filtered by type.
func (s *Service) List(ctx context.Context, numberType string) ([]SavedNumber, error) {
	if numberType != "" && numberType != TypeRecipient && numberType != TypeFrom {
		return nil, apperr.Validation("number type must be 'recipient' or 'from'")
	}
	numbers, err := s.repo.List(ctx, numberType)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list phone numbers", err)
	}
	return numbers, nil
}

// Lookup finds a saved number by value.
func (s *Service) Lookup(ctx context.Context, phoneNumber string) (SavedNumber, error) {
	n, err := s.repo.GetByNumber(ctx, phone.NormalizeE164(phoneNumber))
	if errors.Is(err, ErrNumberNotFound) {
		return SavedNumber{}, apperr.NotFound("phone number not found")
	}
	if err != nil {
		return SavedNumber{}, apperr.Wrap(apperr.KindInternal, "lookup phone number", err)
	}
	return n, nil
}

// MarkUsed records that a number was just used for a call.
func (s *Service) MarkUsed(ctx context.Context, phoneNumber string) error {
	err := s.repo.TouchUsage(ctx, phone.NormalizeE164(phoneNumber))
	if errors.Is(err, ErrNumberNotFound) {
		return apperr.NotFound("phone number not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "update phone number usage", err)
	}
	return nil
}

// Delete removes a saved number.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNumberNotFound) {
		return apperr.NotFound("phone number not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete phone number", err)
	}
	return nil
}
