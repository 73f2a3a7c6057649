package services

import (
	"context"
	"fmt"
	"strings"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/db"
	"sms-support-server/internal/models"
	"sms-support-server/pkg/logger"
	"sms-support-server/pkg/utils"

	"go.uber.org/zap"
)

// CustomerService provides business logic for the customer directory
type CustomerService struct {
	repo db.CustomerRepository
}

// NewCustomerService creates a new CustomerService instance
func NewCustomerService(repo db.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// Create adds a customer entered by an agent. A phone number already on file
// yields a Conflict error.
func (s *CustomerService) Create(ctx context.Context, req *models.CreateCustomerRequest) (*models.Customer, error) {
	if req == nil {
		return nil, apperrors.Validation("customer is required")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, apperrors.Validation("invalid phone number")
	}

	customer := &models.Customer{
		Name:    name,
		Phone:   phone,
		Email:   req.Email,
		Company: req.Company,
		Notes:   req.Notes,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}

	logger.Info("Customer created", zap.String("customer_id", customer.ID), zap.String("phone", phone))
	return customer, nil
}

// Get returns the customer or a NotFound error
func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperrors.NotFound("Customer not found")
	}
	return customer, nil
}

// FindByPhone returns the customer with the phone number, or nil
func (s *CustomerService) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, apperrors.Validation("invalid phone number")
	}
	return s.repo.GetByPhone(ctx, normalized)
}

// FindOrCreateByPhone returns the customer for phone, creating one named
// fallbackName when none exists. Losing a creation race to a concurrent
// caller is resolved by re-reading the winner's record.
func (s *CustomerService) FindOrCreateByPhone(ctx context.Context, phone, fallbackName string) (*models.Customer, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, apperrors.Validation("invalid phone number")
	}

	existing, err := s.repo.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if strings.TrimSpace(fallbackName) == "" {
		fallbackName = normalized
	}
	company := models.UnknownCompany
	customer := &models.Customer{
		Name:    fallbackName,
		Phone:   normalized,
		Company: &company,
	}

	err = s.repo.Create(ctx, customer)
	if apperrors.IsKind(err, apperrors.KindConflict) {
		winner, getErr := s.repo.GetByPhone(ctx, normalized)
		if getErr != nil {
			return nil, getErr
		}
		if winner == nil {
			return nil, fmt.Errorf("customer %s vanished after conflict: %w", normalized, err)
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Customer created from inbound message", zap.String("customer_id", customer.ID), zap.String("phone", normalized))
	return customer, nil
}

// List returns every customer ordered by name
func (s *CustomerService) List(ctx context.Context) ([]*models.Customer, error) {
	return s.repo.List(ctx)
}

// Update applies the allowed field changes to a customer
func (s *CustomerService) Update(ctx context.Context, id string, update models.CustomerUpdate) (*models.Customer, error) {
	if update.Empty() {
		return nil, apperrors.Validation("no fields to update")
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, apperrors.Validation("name cannot be empty")
	}

	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(customer)
	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// Delete removes a customer. Its conversations are kept with no owner.
func (s *CustomerService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.Validation("customer ID is required")
	}
	return s.repo.Delete(ctx, id)
}
