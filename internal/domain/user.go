package domain

type User struct {
	ID        string  `db:"id" json:"id"`
	Email     *string `db:"email" json:"email,omitempty"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
	CreatedAt string  `db:"created_at" json:"createdAt"`
}

type BrandSubscription struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"userId"`
	BrandID   string `db:"brand_id" json:"brandId"`
	Active    bool   `db:"active" json:"active"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt,omitempty"`
}

type ProductSubscription struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"userId"`
	ProductID string `db:"product_id" json:"productId"`
	Active    bool   `db:"active" json:"active"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt,omitempty"`
}

// Subscriber is an active subscription resolved to its contact channels.
// ProductID is set only for product-level subscriptions.
type Subscriber struct {
	UserID    string  `db:"user_id"`
	Email     *string `db:"email"`
	Phone     *string `db:"phone"`
	ProductID string  `db:"product_id"`
}
