package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
)

var ErrEmployeeExists = errors.New("employee_exists")

type EmployeeService struct {
	Store store.Store
}

// NewEmployee is the input for seeding an employee account.
type NewEmployee struct {
	Email     string
	FirstName string
	LastName  string
	Title     string
	Role      domain.Role
	Password  string
}

// Create hashes the password and stores the employee. The password must
// satisfy the same policy ChangePassword enforces.
func (s *EmployeeService) Create(ctx context.Context, in NewEmployee) (domain.Employee, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Employee{}, fmt.Errorf("invalid email %q", in.Email)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return domain.Employee{}, errors.New("first and last name are required")
	}
	if err := checkPassword(in.Password); err != nil {
		return domain.Employee{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Employee{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	e := domain.Employee{
		Email:              email,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		Title:              strings.TrimSpace(in.Title),
		Role:               in.Role,
		PasswordHash:       hash,
		LastPasswordChange: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	e.ID, err = s.Store.Employees().CreateEmployee(ctx, e)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Employee{}, ErrEmployeeExists
		}
		return domain.Employee{}, err
	}
	return e, nil
}

// GetByID fetches an employee by id.
func (s *EmployeeService) GetByID(ctx context.Context, id int64) (domain.Employee, error) {
	return s.Store.Employees().GetEmployeeByID(ctx, id)
}

// GetByEmail fetches an employee by email, normalising it first.
func (s *EmployeeService) GetByEmail(ctx context.Context, email string) (domain.Employee, error) {
	return s.Store.Employees().GetEmployeeByEmail(ctx, domain.NormalizeEmail(email))
}

// Unlock clears the failure counter and the lock.
func (s *EmployeeService) Unlock(ctx context.Context, id int64) error {
	return s.Store.Employees().ResetFailedAttempts(ctx, id, time.Now())
}

// SetRole records an explicit role, replacing the title based fallback.
func (s *EmployeeService) SetRole(ctx context.Context, id int64, role domain.Role) error {
	return s.Store.Employees().SetRole(ctx, id, role, time.Now())
}
