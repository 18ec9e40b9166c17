package dto

type CreateCategoryInput struct {
	ParentID    *string
	Name        string
	Description string
	ImageURL    string
	SortOrder   int
}

type UpdateCategoryInput struct {
	ID          string
	ParentID    *string
	Name        string
	Description string
	ImageURL    string
	SortOrder   int
	IsActive    bool
}

type CategoryFilters struct {
	// ParentID filters by parent; an empty string selects root categories.
	ParentID *string
	IsActive *bool
	Page     int
	PageSize int
}

type CreateBrandInput struct {
	Name    string
	LogoURL string
}
