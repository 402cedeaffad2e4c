// Package mnemonic issues and consumes the 24-word one-time passphrases
// used as registration and login credentials.
package mnemonic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"
	"github.com/xaenox/worklog-bot/internal/models"
	"github.com/xaenox/worklog-bot/internal/storage"
)

type Service struct {
	storage storage.MnemonicStorage
}

func NewService(storage storage.MnemonicStorage) *Service {
	return &Service{storage: storage}
}

// Generate produces a fresh 24-word passphrase from the BIP39 wordlist
// with 256 bits of crypto/rand entropy. No uniqueness check against
// prior tokens; the collision probability is negligible.
func (s *Service) Generate() (*models.Mnemonic, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return &models.Mnemonic{
		ID:        uuid.New().String(),
		Phrase:    phrase,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// StorePending records a mnemonic as awaiting consumption. Storing the
// same phrase twice creates two independently consumable entries.
func (s *Service) StorePending(ctx context.Context, m *models.Mnemonic) error {
	return s.storage.StorePending(ctx, m)
}

// GenerateAndStore is the common issue path for the bot boundary.
func (s *Service) GenerateAndStore(ctx context.Context) (*models.Mnemonic, error) {
	m, err := s.Generate()
	if err != nil {
		return nil, err
	}
	if err := s.storage.StorePending(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ValidateAndConsume normalizes the candidate text and atomically
// consumes one matching pending entry. Malformed, empty or unmatched
// input returns false with no side effects.
func (s *Service) ValidateAndConsume(ctx context.Context, candidate string) (bool, error) {
	words := strings.Fields(candidate)
	if len(words) != models.MnemonicWordCount {
		return false, nil
	}
	return s.storage.ConsumePending(ctx, strings.Join(words, " "))
}
