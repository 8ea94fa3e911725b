package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unionportal/benefits-api/internal/models"
)

func newOrderRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOrderRepositoryCreateWithDetails(t *testing.T) {
	db, mock, cleanup := newOrderRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE employees SET point_balance = point_balance - $1")).
		WithArgs(150.0, "E100").
		WillReturnRows(sqlmock.NewRows([]string{"point_balance"}).AddRow(350.0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(sqlmock.AnyArg(), "act-1", "E100", 150.0, 20.0, "user-1", "Alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_details")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "prod-1", 2, 50.0, 5.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_details")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "prod-2", 1, 50.0, 10.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	order := &models.Order{
		ActivityID:       "act-1",
		EmployeeNo:       "E100",
		TotalBonusPoints: 150,
		TotalMoney:       20,
		CreatedBy:        "user-1",
		CreatedByName:    "Alice",
	}
	details := []models.OrderDetail{
		{ProductID: "prod-1", Quantity: 2, BonusPointPrice: 50, MoneyPrice: 5},
		{ProductID: "prod-2", Quantity: 1, BonusPointPrice: 50, MoneyPrice: 10},
	}
	remaining, err := repo.CreateWithDetails(context.Background(), order, details)
	require.NoError(t, err)
	require.Equal(t, 350.0, remaining)
	require.Equal(t, order.ID, details[0].OrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateInsufficientPoints(t *testing.T) {
	db, mock, cleanup := newOrderRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE employees SET point_balance = point_balance - $1")).
		WithArgs(900.0, "E100").
		WillReturnRows(sqlmock.NewRows([]string{"point_balance"}))
	mock.ExpectRollback()

	order := &models.Order{EmployeeNo: "E100", TotalBonusPoints: 900}
	_, err := repo.CreateWithDetails(context.Background(), order, nil)
	require.ErrorIs(t, err, ErrInsufficientPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}
