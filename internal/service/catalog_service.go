package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"storytime/internal/catalog"
	"storytime/internal/domain"
	"storytime/internal/repository"
)

// CatalogService serves the language/category catalog and brokers
// client-level credentials for the external story catalog.
type CatalogService interface {
	Languages(ctx context.Context) ([]domain.Language, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	ClientCredential(ctx context.Context) (*catalog.Credential, error)
}

type catalogService struct {
	repo      repository.CatalogRepository
	exchanger catalog.Exchanger
	logger    *logrus.Logger
}

func NewCatalogService(repo repository.CatalogRepository, exchanger catalog.Exchanger, logger *logrus.Logger) CatalogService {
	if logger == nil {
		logger = logrus.New()
	}
	return &catalogService{repo: repo, exchanger: exchanger, logger: logger}
}

func (s *catalogService) Languages(ctx context.Context) ([]domain.Language, error) {
	langs, err := s.repo.ListLanguages(ctx)
	if err != nil {
		return nil, serverError(msgServer, err)
	}
	return langs, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, serverError(msgServer, err)
	}
	return cats, nil
}

// ClientCredential is a stateless pass-through; every upstream failure is
// reported as the same server error.
func (s *catalogService) ClientCredential(ctx context.Context) (*catalog.Credential, error) {
	cred, err := s.exchanger.Exchange(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("catalog credential exchange failed")
		return nil, serverError(msgServer, err)
	}
	return cred, nil
}
