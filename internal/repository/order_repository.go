package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unionportal/benefits-api/internal/models"
)

// ErrInsufficientPoints is returned when the employee's balance cannot cover
// the order total at debit time.
var ErrInsufficientPoints = errors.New("insufficient point balance")

// OrderRepository handles persistence of redemption orders.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateWithDetails writes the order, its line items, and the point debit in
// one transaction. The balance check happens inside the conditional UPDATE so
// two concurrent orders cannot both spend the same points. Returns the
// remaining balance after the debit.
func (r *OrderRepository) CreateWithDetails(ctx context.Context, order *models.Order, details []models.OrderDetail) (float64, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var remaining float64
	const debit = `UPDATE employees SET point_balance = point_balance - $1
        WHERE no = $2 AND point_balance >= $1 RETURNING point_balance`
	if err := tx.GetContext(ctx, &remaining, debit, order.TotalBonusPoints, order.EmployeeNo); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrInsufficientPoints
		}
		return 0, fmt.Errorf("debit points: %w", err)
	}

	const insertOrder = `INSERT INTO orders (id, activity_id, employee_no, total_bonus_points, total_money, created_by, created_by_name, created_at)
        VALUES (:id, :activity_id, :employee_no, :total_bonus_points, :total_money, :created_by, :created_by_name, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertOrder, order); err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	const insertDetail = `INSERT INTO order_details (id, order_id, product_id, quantity, bonus_point_price, money_price)
        VALUES (:id, :order_id, :product_id, :quantity, :bonus_point_price, :money_price)`
	for i := range details {
		details[i].OrderID = order.ID
		if details[i].ID == "" {
			details[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, insertDetail, details[i]); err != nil {
			return 0, fmt.Errorf("create order detail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order tx: %w", err)
	}
	return remaining, nil
}

// ListByEmployee returns the employee's orders, newest first.
func (r *OrderRepository) ListByEmployee(ctx context.Context, employeeNo string) ([]models.Order, error) {
	const query = `SELECT id, activity_id, employee_no, total_bonus_points, total_money, created_by, created_by_name, created_at
        FROM orders WHERE employee_no = $1 ORDER BY created_at DESC`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, employeeNo); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListDetails returns the line items of one order.
func (r *OrderRepository) ListDetails(ctx context.Context, orderID string) ([]models.OrderDetail, error) {
	const query = `SELECT id, order_id, product_id, quantity, bonus_point_price, money_price
        FROM order_details WHERE order_id = $1`
	var details []models.OrderDetail
	if err := r.db.SelectContext(ctx, &details, query, orderID); err != nil {
		return nil, fmt.Errorf("list order details: %w", err)
	}
	return details, nil
}
