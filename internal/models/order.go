package models

import "time"

// Order records a point-redemption purchase placed by an employee.
type Order struct {
	ID               string    `db:"id" json:"id"`
	ActivityID       string    `db:"activity_id" json:"activity_id"`
	EmployeeNo       string    `db:"employee_no" json:"employee_no"`
	TotalBonusPoints float64   `db:"total_bonus_points" json:"total_bonus_points"`
	TotalMoney       float64   `db:"total_money" json:"total_money"`
	CreatedBy        string    `db:"created_by" json:"created_by"`
	CreatedByName    string    `db:"created_by_name" json:"created_by_name"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// OrderDetail is one purchased line item. A detail belongs to exactly one
// order and references exactly one product; it is immutable once created.
type OrderDetail struct {
	ID              string  `db:"id" json:"id"`
	OrderID         string  `db:"order_id" json:"order_id"`
	ProductID       string  `db:"product_id" json:"product_id"`
	Quantity        int     `db:"quantity" json:"quantity"`
	BonusPointPrice float64 `db:"bonus_point_price" json:"bonus_point_price"`
	MoneyPrice      float64 `db:"money_price" json:"money_price"`
}
