package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// specsJSON and imagesJSON map the JSONB columns.
type specsJSON map[string]string

func (s specsJSON) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func (s *specsJSON) Scan(src any) error {
	return scanJSON(src, s)
}

type imagesJSON []model.ProductImage

func (i imagesJSON) Value() (driver.Value, error) {
	if i == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(i)
}

func (i *imagesJSON) Scan(src any) error {
	return scanJSON(src, i)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// productRow mirrors the products table. The model keeps stock_quantity and
// status unexported, so scanning goes through this row type and rehydration
// goes through RestoreStock.
type productRow struct {
	model.BaseModel
	AccountID string `db:"account_id"`
	UserID    string `db:"user_id"`

	Code        string  `db:"code"`
	Name        string  `db:"name"`
	Description *string `db:"description"`

	CategoryID *string `db:"category_id"`
	BrandID    *string `db:"brand_id"`

	Price         float64  `db:"price"`
	OriginalPrice *float64 `db:"original_price"`
	CostPrice     *float64 `db:"cost_price"`

	StockQuantity int    `db:"stock_quantity"`
	MinStockAlert int    `db:"min_stock_alert"`
	Condition     string `db:"condition"`
	Status        string `db:"status"`

	Specifications specsJSON  `db:"specifications"`
	Images         imagesJSON `db:"images"`

	Slug       *string `db:"slug"`
	Keywords   *string `db:"keywords"`
	IsFeatured bool    `db:"is_featured"`

	WeightKg         *float64 `db:"weight_kg"`
	Dimensions       *string  `db:"dimensions"`
	ShippingRequired bool     `db:"shipping_required"`

	AllowsNegotiation   bool     `db:"allows_negotiation"`
	MinNegotiationPrice *float64 `db:"min_negotiation_price"`

	ViewCount     int `db:"view_count"`
	ContactCount  int `db:"contact_count"`
	FavoriteCount int `db:"favorite_count"`

	IsImported    bool    `db:"is_imported"`
	ImportBatchID *string `db:"import_batch_id"`
}

func toRow(p *model.Product) *productRow {
	return &productRow{
		BaseModel:           p.BaseModel,
		AccountID:           p.AccountID,
		UserID:              p.UserID,
		Code:                p.Code,
		Name:                p.Name,
		Description:         p.Description,
		CategoryID:          p.CategoryID,
		BrandID:             p.BrandID,
		Price:               p.Price,
		OriginalPrice:       p.OriginalPrice,
		CostPrice:           p.CostPrice,
		StockQuantity:       p.StockQuantity(),
		MinStockAlert:       p.MinStockAlert,
		Condition:           string(p.Condition),
		Status:              string(p.Status()),
		Specifications:      p.Specifications,
		Images:              p.Images,
		Slug:                p.Slug,
		Keywords:            p.Keywords,
		IsFeatured:          p.IsFeatured,
		WeightKg:            p.WeightKg,
		Dimensions:          p.Dimensions,
		ShippingRequired:    p.ShippingRequired,
		AllowsNegotiation:   p.AllowsNegotiation,
		MinNegotiationPrice: p.MinNegotiationPrice,
		ViewCount:           p.ViewCount,
		ContactCount:        p.ContactCount,
		FavoriteCount:       p.FavoriteCount,
		IsImported:          p.IsImported,
		ImportBatchID:       p.ImportBatchID,
	}
}

func (r *productRow) toModel() *model.Product {
	p := &model.Product{
		BaseModel:           r.BaseModel,
		AccountID:           r.AccountID,
		UserID:              r.UserID,
		Code:                r.Code,
		Name:                r.Name,
		Description:         r.Description,
		CategoryID:          r.CategoryID,
		BrandID:             r.BrandID,
		Price:               r.Price,
		OriginalPrice:       r.OriginalPrice,
		CostPrice:           r.CostPrice,
		MinStockAlert:       r.MinStockAlert,
		Condition:           model.ProductCondition(r.Condition),
		Specifications:      r.Specifications,
		Images:              r.Images,
		Slug:                r.Slug,
		Keywords:            r.Keywords,
		IsFeatured:          r.IsFeatured,
		WeightKg:            r.WeightKg,
		Dimensions:          r.Dimensions,
		ShippingRequired:    r.ShippingRequired,
		AllowsNegotiation:   r.AllowsNegotiation,
		MinNegotiationPrice: r.MinNegotiationPrice,
		ViewCount:           r.ViewCount,
		ContactCount:        r.ContactCount,
		FavoriteCount:       r.FavoriteCount,
		IsImported:          r.IsImported,
		ImportBatchID:       r.ImportBatchID,
	}
	p.RestoreStock(r.StockQuantity, model.ProductStatus(r.Status))
	return p
}

func (r *PGRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
        INSERT INTO products (
            id, account_id, user_id, code, name, description,
            category_id, brand_id, price, original_price, cost_price,
            stock_quantity, min_stock_alert, condition, status,
            specifications, images, slug, keywords, is_featured,
            weight_kg, dimensions, shipping_required,
            allows_negotiation, min_negotiation_price,
            view_count, contact_count, favorite_count,
            is_imported, import_batch_id, created_at, updated_at
        )
        VALUES (
            :id, :account_id, :user_id, :code, :name, :description,
            :category_id, :brand_id, :price, :original_price, :cost_price,
            :stock_quantity, :min_stock_alert, :condition, :status,
            :specifications, :images, :slug, :keywords, :is_featured,
            :weight_kg, :dimensions, :shipping_required,
            :allows_negotiation, :min_negotiation_price,
            :view_count, :contact_count, :favorite_count,
            :is_imported, :import_batch_id, :created_at, :updated_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, toRow(p))
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var row productRow
	query := `SELECT * FROM products WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *PGRepository) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	var row productRow
	query := `SELECT * FROM products WHERE code = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &row, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.AccountID != "" {
		conditions = append(conditions, "account_id = :account_id")
		args["account_id"] = f.AccountID
	}
	if f.CategoryID != "" {
		conditions = append(conditions, "category_id = :category_id")
		args["category_id"] = f.CategoryID
	}
	if f.BrandID != "" {
		conditions = append(conditions, "brand_id = :brand_id")
		args["brand_id"] = f.BrandID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.Condition != "" {
		conditions = append(conditions, "condition = :condition")
		args["condition"] = f.Condition
	}
	if f.MinPrice > 0 {
		conditions = append(conditions, "price >= :min_price")
		args["min_price"] = f.MinPrice
	}
	if f.MaxPrice > 0 {
		conditions = append(conditions, "price <= :max_price")
		args["max_price"] = f.MaxPrice
	}
	if f.OnlyInStock {
		conditions = append(conditions, "stock_quantity > 0")
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(name ILIKE :search OR code ILIKE :search OR keywords ILIKE :search)")
		args["search"] = "%" + f.SearchQuery + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	countQuery := "SELECT count(*) FROM products" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	orderBy := "created_at DESC"
	if f.SortBy != "" {
		// whitelist sortable columns
		switch f.SortBy {
		case "name":
			orderBy = "name"
		case "price":
			orderBy = "price"
		case "views":
			orderBy = "view_count"
		case "created_at":
			orderBy = "created_at"
		}
		if strings.ToLower(f.SortOrder) == "asc" {
			orderBy += " ASC"
		} else {
			orderBy += " DESC"
		}
	}

	query := fmt.Sprintf("SELECT * FROM products%s ORDER BY %s", whereClause, orderBy)
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	var rowsOut []productRow
	if err := nstmt.SelectContext(ctx, &rowsOut, args); err != nil {
		return nil, 0, err
	}

	products := make([]model.Product, 0, len(rowsOut))
	for i := range rowsOut {
		products = append(products, *rowsOut[i].toModel())
	}
	return products, count, nil
}

func (r *PGRepository) Update(ctx context.Context, p *model.Product) error {
	query := `
        UPDATE products SET
            name = :name, description = :description,
            category_id = :category_id, brand_id = :brand_id,
            price = :price, original_price = :original_price, cost_price = :cost_price,
            stock_quantity = :stock_quantity, min_stock_alert = :min_stock_alert,
            condition = :condition, status = :status,
            specifications = :specifications, images = :images,
            slug = :slug, keywords = :keywords, is_featured = :is_featured,
            weight_kg = :weight_kg, dimensions = :dimensions,
            shipping_required = :shipping_required,
            allows_negotiation = :allows_negotiation,
            min_negotiation_price = :min_negotiation_price,
            view_count = :view_count, contact_count = :contact_count,
            favorite_count = :favorite_count, updated_at = :updated_at
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, toRow(p))
	return err
}

// Delete removes a product. Transactions referencing it cascade away at the
// database level.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (r *PGRepository) IsCodeUnique(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, `SELECT count(*) FROM products WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
