// backend/src/services/account_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/models"
	"github.com/username/dmtrade/backend/src/repository"
	"github.com/username/dmtrade/backend/src/security/validation"
)

type accountServiceImpl struct {
	accounts repository.AccountRepository
	// portfolios is optional; when set, portfolios removed by an account
	// cascade are released from it.
	portfolios PortfolioService
}

func NewAccountService(accounts repository.AccountRepository, portfolios PortfolioService) AccountService {
	return &accountServiceImpl{accounts: accounts, portfolios: portfolios}
}

func (s *accountServiceImpl) CreateAccount(ctx context.Context, email, firstName, lastName string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	firstName = validation.CleanName(firstName)
	lastName = validation.CleanName(lastName)
	if err := validation.ValidateStringMaxLength(firstName, validation.MaxPersonNameLength, "first_name"); err != nil {
		return nil, err
	}
	if err := validation.ValidateStringMaxLength(lastName, validation.MaxPersonNameLength, "last_name"); err != nil {
		return nil, err
	}
	for field, value := range map[string]string{"first_name": firstName, "last_name": lastName} {
		if err := validation.CheckFormulaInjection(value, field); err != nil {
			return nil, err
		}
	}

	a := &models.Account{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := s.accounts.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Account created", "accountID", a.ID)
	return a, nil
}

func (s *accountServiceImpl) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.accounts.GetAccount(ctx, id)
}

func (s *accountServiceImpl) DeleteAccount(ctx context.Context, id string) error {
	var portfolioIDs []string
	if s.portfolios != nil {
		owned, err := s.portfolios.ListPortfolios(ctx, id)
		if err != nil {
			return fmt.Errorf("list portfolios of account %s: %w", id, err)
		}
		for _, p := range owned {
			portfolioIDs = append(portfolioIDs, p.ID)
		}
	}
	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if s.portfolios != nil {
		s.portfolios.Release(portfolioIDs...)
	}
	logger.FromContext(ctx).Info("Account deleted", "accountID", id, "portfolios", len(portfolioIDs))
	return nil
}
