package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/MaxtDesign/MaxtPM/internal/ids"
	"github.com/MaxtDesign/MaxtPM/internal/media/sniffer"
	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
)

// LogoStore persists an uploaded logo and returns the URL it is served from.
type LogoStore interface {
	PutLogo(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type CompanyService struct {
	companies repository.CompanyStore
	users     repository.UserStore
	logos     LogoStore
	maxLogo   int64
	log       zerolog.Logger
}

// NewCompanyService accepts a nil logos store; uploads then fail with
// ErrStorageUnavailable.
func NewCompanyService(store repository.Store, logos LogoStore, maxLogo int64, log zerolog.Logger) *CompanyService {
	return &CompanyService{
		companies: store,
		users:     store,
		logos:     logos,
		maxLogo:   maxLogo,
		log:       log,
	}
}

func (s *CompanyService) Get(ctx context.Context, companyID string) (models.Company, error) {
	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, repository.ErrCompanyNotFound) {
			return models.Company{}, ErrCompanyNotFound
		}
		return models.Company{}, fmt.Errorf("get company: %w", err)
	}
	return company, nil
}

func (s *CompanyService) ListUsers(ctx context.Context, companyID string) ([]models.User, error) {
	if _, err := s.Get(ctx, companyID); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsersByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UploadLogo validates the image by its content, stores it and points the
// company at the new URL.
func (s *CompanyService) UploadLogo(ctx context.Context, companyID string, file io.Reader) (models.Company, error) {
	if _, err := s.Get(ctx, companyID); err != nil {
		return models.Company{}, err
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxLogo+1))
	if err != nil {
		return models.Company{}, fmt.Errorf("read logo: %w", err)
	}
	if int64(len(data)) > s.maxLogo {
		return models.Company{}, ErrImageTooLarge
	}

	kind, err := sniffer.Detect(data)
	if err != nil || !kind.Raster() {
		return models.Company{}, ErrUnsupportedImage
	}

	if s.logos == nil {
		return models.Company{}, ErrStorageUnavailable
	}
	key := fmt.Sprintf("companies/%s/logo-%s.%s", companyID, ids.New(), kind.Ext())
	logoURL, err := s.logos.PutLogo(ctx, key, bytes.NewReader(data), int64(len(data)), kind.MIME)
	if err != nil {
		s.log.Error().Err(err).Str("company_id", companyID).Msg("store logo")
		return models.Company{}, ErrStorageUnavailable
	}

	company, err := s.companies.UpdateCompanyLogo(ctx, companyID, logoURL)
	if err != nil {
		return models.Company{}, fmt.Errorf("update logo: %w", err)
	}
	s.log.Info().Str("company_id", companyID).Str("format", string(kind.Format)).Msg("company logo updated")
	return company, nil
}
