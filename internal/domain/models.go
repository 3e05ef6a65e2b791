package domain

type Brand struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Website   string `db:"website" json:"website"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

type ProductKind string

const (
	KindSingleSKU         ProductKind = "single_sku"
	KindCollectionMonitor ProductKind = "collection_monitor"
)

type Product struct {
	ID            string      `db:"id" json:"id"`
	BrandID       string      `db:"brand_id" json:"brandId"`
	Name          string      `db:"name" json:"name"`
	Kind          ProductKind `db:"kind" json:"kind"`
	Weight        *string     `db:"weight" json:"weight,omitempty"`
	Price         *float64    `db:"price" json:"price,omitempty"`
	ImageURL      *string     `db:"image_url" json:"imageUrl,omitempty"`
	URL           string      `db:"url" json:"url"`
	ContentHash   string      `db:"content_hash" json:"-"`
	LastCheckedAt string      `db:"last_checked_at" json:"lastCheckedAt,omitempty"`
	CreatedAt     string      `db:"created_at" json:"createdAt"`
	UpdatedAt     string      `db:"updated_at" json:"updatedAt,omitempty"`
}

// ProductStock is a product joined with its current stock state. InStock is
// nil when the ledger holds no observation for the product yet.
type ProductStock struct {
	Product
	BrandName   string `db:"brand_name" json:"brandName"`
	InStock     *bool  `db:"in_stock" json:"inStock"`
	LastChanged string `db:"last_changed" json:"lastChanged,omitempty"`
}

// StockObservation is one ledger entry. Seq orders entries by insertion.
type StockObservation struct {
	Seq        int64  `db:"seq" json:"-"`
	ID         string `db:"id" json:"id"`
	ProductID  string `db:"product_id" json:"productId"`
	InStock    bool   `db:"in_stock" json:"inStock"`
	ObservedAt string `db:"observed_at" json:"observedAt"`
}

// ScrapedItem is the normalized output of an extractor.
type ScrapedItem struct {
	Name        string
	Price       *float64
	Weight      *string
	ImageURL    *string
	URL         string
	InStock     bool
	Kind        ProductKind
	ContentHash string
}

// RestockedProduct describes a product whose derived stock state went from
// false or unknown to true during a cycle.
type RestockedProduct struct {
	ProductID string   `json:"id"`
	Name      string   `json:"name"`
	Weight    *string  `json:"weight,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	URL       string   `json:"url"`
}

type ReconcileResult struct {
	Created   int
	Updated   int
	Appended  int
	Skipped   int
	Restocked []RestockedProduct
}
