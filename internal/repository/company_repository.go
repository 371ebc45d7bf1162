package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MaxtDesign/MaxtPM/internal/models"
)

const companyColumns = `id, name, address, phone, email, website, logo, created_at, updated_at`

func scanCompany(row scanner) (models.Company, error) {
	var (
		company models.Company
		address []byte
	)
	if err := row.Scan(
		&company.ID,
		&company.Name,
		&address,
		&company.Phone,
		&company.Email,
		&company.Website,
		&company.Logo,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return models.Company{}, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &company.Address); err != nil {
			return models.Company{}, fmt.Errorf("decode address: %w", err)
		}
	}
	return company, nil
}

func (s *Postgres) GetCompany(ctx context.Context, id string) (models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`

	company, err := scanCompany(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return models.Company{}, notFound(err, ErrCompanyNotFound)
	}
	return company, nil
}

func (s *Postgres) UpdateCompanyLogo(ctx context.Context, id string, logo string) (models.Company, error) {
	query := `UPDATE companies SET logo = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + companyColumns

	company, err := scanCompany(s.pool.QueryRow(ctx, query, id, logo))
	if err != nil {
		return models.Company{}, notFound(err, ErrCompanyNotFound)
	}
	return company, nil
}
