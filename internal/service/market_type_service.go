// Package service contains the application services: the market lifecycle
// engine, the market type registry, and wallet-based authentication.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// MarketTypeService is the registry of named validation rule-sets applied at
// approval time.
type MarketTypeService struct {
	types  domain.MarketTypeStore
	logger *slog.Logger
}

// NewMarketTypeService creates a MarketTypeService.
func NewMarketTypeService(types domain.MarketTypeStore, logger *slog.Logger) *MarketTypeService {
	return &MarketTypeService{
		types:  types,
		logger: logger.With(slog.String("component", "market_types")),
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// defaultMarketTypes returns the built-in rule-sets seeded at startup.
func defaultMarketTypes() []domain.MarketType {
	return []domain.MarketType{
		{
			Name:        "Low Risk",
			Description: "Markets with minimal risk - require expiry > 24 hours",
			IsActive:    true,
			Rules: domain.ValidationRules{
				MinExpiryHours:     intPtr(24),
				MinConvictionLevel: floatPtr(0.1),
				MaxConvictionLevel: floatPtr(1.0),
			},
		},
		{
			Name:        "High Risk",
			Description: "High risk markets - require conviction > 0.7 and expiry > 48 hours",
			IsActive:    true,
			Rules: domain.ValidationRules{
				MinExpiryHours:     intPtr(48),
				MinConvictionLevel: floatPtr(0.7),
				MaxConvictionLevel: floatPtr(1.0),
			},
		},
		{
			Name:        "Meme",
			Description: "Meme markets - cannot contain banned words",
			IsActive:    true,
			Rules: domain.ValidationRules{
				MinExpiryHours:     intPtr(1),
				MinConvictionLevel: floatPtr(0.01),
				MaxConvictionLevel: floatPtr(1.0),
				BannedWords:        []string{"rug", "scam", "ponzi", "exit"},
			},
		},
	}
}

// SeedDefaults inserts the built-in market types. Idempotent: existing rows
// are neither duplicated nor reset.
func (s *MarketTypeService) SeedDefaults(ctx context.Context) error {
	if err := s.types.Seed(ctx, defaultMarketTypes()); err != nil {
		return fmt.Errorf("market_types: seed: %w", err)
	}
	s.logger.InfoContext(ctx, "market types seeded")
	return nil
}

// FindAllActive returns all active market types ordered by name.
func (s *MarketTypeService) FindAllActive(ctx context.Context) ([]domain.MarketType, error) {
	return s.types.ListActive(ctx)
}

// Validate evaluates every rule of the given market type against the market.
// All violated rules are collected; on any violation a *domain.ValidationError
// carrying the full list is returned. An unknown type id yields ErrNotFound.
func (s *MarketTypeService) Validate(ctx context.Context, typeID int64, m domain.Market) error {
	mt, err := s.types.FindByID(ctx, typeID)
	if err != nil {
		return fmt.Errorf("market_types: type %d: %w", typeID, err)
	}

	rules := mt.Rules
	var violations []string

	if rules.MinConvictionLevel != nil && m.ConvictionLevel < *rules.MinConvictionLevel {
		violations = append(violations,
			fmt.Sprintf("%s requires conviction >= %g", mt.Name, *rules.MinConvictionLevel))
	}
	if rules.MaxConvictionLevel != nil && m.ConvictionLevel > *rules.MaxConvictionLevel {
		violations = append(violations,
			fmt.Sprintf("%s requires conviction <= %g", mt.Name, *rules.MaxConvictionLevel))
	}

	if rules.MinExpiryHours != nil {
		hoursUntilExpiry := time.Until(m.Expiry).Hours()
		if hoursUntilExpiry < float64(*rules.MinExpiryHours) {
			violations = append(violations,
				fmt.Sprintf("%s requires expiry >= %d hours from now", mt.Name, *rules.MinExpiryHours))
		}
	}

	if len(rules.BannedWords) > 0 {
		text := strings.ToLower(m.Title + " " + m.Description)
		var found []string
		for _, word := range rules.BannedWords {
			if strings.Contains(text, strings.ToLower(word)) {
				found = append(found, word)
			}
		}
		if len(found) > 0 {
			violations = append(violations,
				fmt.Sprintf("%s cannot contain: %s", mt.Name, strings.Join(found, ", ")))
		}
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}
