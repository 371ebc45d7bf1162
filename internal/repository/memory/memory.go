// Package memory is an in-process repository.Store used by tests and local
// tooling. Every method holds one mutex, which makes each multi-step write
// atomic: changes are staged and only committed once all steps succeed.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
)

type Store struct {
	mu sync.Mutex

	users     map[string]models.User
	companies map[string]models.Company
	refresh   map[string]models.RefreshToken
	resets    map[string]models.PasswordResetToken
	faults    map[string]error

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:     make(map[string]models.User),
		companies: make(map[string]models.Company),
		refresh:   make(map[string]models.RefreshToken),
		resets:    make(map[string]models.PasswordResetToken),
		faults:    make(map[string]error),
		now:       time.Now,
	}
}

// InjectFault makes the next transaction that reaches step fail with err.
// Steps: register:create-user, password:revoke-sessions,
// reset:update-password, reset:revoke-sessions.
func (s *Store) InjectFault(step string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[step] = err
}

func (s *Store) checkpoint(step string) error {
	err, ok := s.faults[step]
	if !ok {
		return nil
	}
	delete(s.faults, step)
	return err
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// CountCompanies is a test helper.
func (s *Store) CountCompanies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.companies)
}

// CountUsers is a test helper.
func (s *Store) CountUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// CountResetTokens is a test helper.
func (s *Store) CountResetTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets)
}

func (s *Store) CreateUser(_ context.Context, user models.User, company *models.Company) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, fmt.Errorf("%w: users_email_lower_key", repository.ErrConflict)
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return models.User{}, fmt.Errorf("%w: users_pkey", repository.ErrConflict)
	}

	now := s.now().UTC()
	var staged *models.Company
	if company != nil {
		if _, ok := s.companies[company.ID]; ok {
			return models.User{}, fmt.Errorf("%w: companies_pkey", repository.ErrConflict)
		}
		c := *company
		c.CreatedAt, c.UpdatedAt = now, now
		staged = &c
		id := c.ID
		user.CompanyID = &id
	}

	if err := s.checkpoint("register:create-user"); err != nil {
		return models.User{}, err
	}

	if staged != nil {
		s.companies[staged.ID] = *staged
		*company = *staged
	}
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) UpdatePassword(_ context.Context, userID string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if err := s.checkpoint("password:revoke-sessions"); err != nil {
		return err
	}

	user.PasswordHash = append([]byte(nil), passwordHash...)
	user.UpdatedAt = s.now().UTC()
	s.users[userID] = user
	s.deleteUserRefreshTokens(userID)
	return nil
}

func (s *Store) SetUserActive(_ context.Context, userID string, active bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	user.IsActive = active
	user.UpdatedAt = s.now().UTC()
	s.users[userID] = user
	if !active {
		s.deleteUserRefreshTokens(userID)
	}
	return user, nil
}

func (s *Store) ListUsersByCompany(_ context.Context, companyID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0)
	for _, user := range s.users {
		if user.CompanyID != nil && *user.CompanyID == companyID {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Store) GetCompany(_ context.Context, id string) (models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	company, ok := s.companies[id]
	if !ok {
		return models.Company{}, repository.ErrCompanyNotFound
	}
	return company, nil
}

func (s *Store) UpdateCompanyLogo(_ context.Context, id string, logo string) (models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	company, ok := s.companies[id]
	if !ok {
		return models.Company{}, repository.ErrCompanyNotFound
	}
	company.Logo = &logo
	company.UpdatedAt = s.now().UTC()
	s.companies[id] = company
	return company, nil
}
