package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/models"

	"github.com/google/uuid"
)

// CustomerRepository defines the interface for customer data access
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Customer, error)
}

// customerRepository implements CustomerRepository interface
type customerRepository struct {
	database *Database
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(database *Database) CustomerRepository {
	return &customerRepository{database: database}
}

const customerColumns = `id, name, phone, email, company, notes, created_at, updated_at`

// Create inserts a customer. A duplicate phone yields a Conflict error.
func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if customer == nil {
		return fmt.Errorf("customer cannot be nil")
	}

	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}

	now := r.database.Now()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	query := r.database.Rebind(`
		INSERT INTO customers (` + customerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.database.db.ExecContext(ctx, query,
		customer.ID,
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.Company,
		customer.Notes,
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return classifyWriteError(err, "create customer", "customer with this phone already exists", "")
	}

	return nil
}

// GetByID retrieves a customer by ID; nil when absent
func (r *customerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	if id == "" {
		return nil, fmt.Errorf("customer ID cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + customerColumns + ` FROM customers WHERE id = ?`)
	customer, err := scanCustomer(r.database.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get customer by ID: %w", err)
	}
	return customer, nil
}

// GetByPhone retrieves a customer by exact phone match; nil when absent
func (r *customerRepository) GetByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + customerColumns + ` FROM customers WHERE phone = ?`)
	customer, err := scanCustomer(r.database.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to get customer by phone: %w", err)
	}
	return customer, nil
}

// Update writes the mutable customer fields
func (r *customerRepository) Update(ctx context.Context, customer *models.Customer) error {
	if customer == nil {
		return fmt.Errorf("customer cannot be nil")
	}
	if customer.ID == "" {
		return fmt.Errorf("customer ID cannot be empty")
	}

	customer.UpdatedAt = r.database.Now()

	query := r.database.Rebind(`
		UPDATE customers
		SET name = ?, email = ?, company = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.database.db.ExecContext(ctx, query,
		customer.Name,
		customer.Email,
		customer.Company,
		customer.Notes,
		customer.UpdatedAt.UnixNano(),
		customer.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("Customer not found")
	}

	return nil
}

// Delete removes a customer. Its conversations keep existing with a nil customer ID.
func (r *customerRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("customer ID cannot be empty")
	}

	result, err := r.database.db.ExecContext(ctx, r.database.Rebind(`DELETE FROM customers WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("Customer not found")
	}

	return nil
}

// List returns all customers ordered by name
func (r *customerRepository) List(ctx context.Context) ([]*models.Customer, error) {
	rows, err := r.database.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*models.Customer{}
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCustomer returns nil, nil on sql.ErrNoRows
func scanCustomer(row rowScanner) (*models.Customer, error) {
	var (
		customer             models.Customer
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&customer.ID,
		&customer.Name,
		&customer.Phone,
		&customer.Email,
		&customer.Company,
		&customer.Notes,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	customer.CreatedAt = toTime(createdAt)
	customer.UpdatedAt = toTime(updatedAt)
	return &customer, nil
}
