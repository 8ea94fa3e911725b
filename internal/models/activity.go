package models

import "time"

// Activity is a point-redemption promotional campaign.
type Activity struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	BeginTime   time.Time `db:"begin_time" json:"begin_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Product is a redeemable item offered within an activity.
type Product struct {
	ID              string  `db:"id" json:"id"`
	ActivityID      string  `db:"activity_id" json:"activity_id"`
	Name            string  `db:"name" json:"name"`
	Description     string  `db:"description" json:"description"`
	BonusPointPrice float64 `db:"bonus_point_price" json:"bonus_point_price"`
	MoneyPrice      float64 `db:"money_price" json:"money_price"`
}

// ActivityDetail bundles an activity with its product catalog.
type ActivityDetail struct {
	Activity
	Products []Product `db:"-" json:"products"`
}
