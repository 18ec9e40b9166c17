package model

// Category groups products. Deleting a category must not delete its
// products; the product reference is set to NULL instead.
type Category struct {
	BaseModel
	ParentID    *string    `db:"parent_id" json:"parent_id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description"`
	ImageURL    *string    `db:"image_url" json:"image_url"`
	SortOrder   int        `db:"sort_order" json:"sort_order"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	Children    []Category `db:"-" json:"children,omitempty"`
}

// Brand is a flat lookup, same SET NULL semantics as Category.
type Brand struct {
	BaseModel
	Name     string  `db:"name" json:"name"`
	LogoURL  *string `db:"logo_url" json:"logo_url"`
	IsActive bool    `db:"is_active" json:"is_active"`
}
