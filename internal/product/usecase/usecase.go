package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/internal/avadmin"
	"github.com/stocktech/marketplace-service/internal/model"
	"github.com/stocktech/marketplace-service/internal/product"
	"github.com/stocktech/marketplace-service/internal/product/dto"
	"github.com/stocktech/marketplace-service/pkg/cache"
	"github.com/stocktech/marketplace-service/pkg/logger"
	"github.com/stocktech/marketplace-service/pkg/search"
)

const productsIndex = "products"

const productsMapping = `{
	"mappings": {
		"properties": {
			"account_id": { "type": "keyword" },
			"code": { "type": "keyword" },
			"name": { "type": "text" },
			"description": { "type": "text" },
			"keywords": { "type": "text" },
			"price": { "type": "double" },
			"status": { "type": "keyword" },
			"created_at": { "type": "date" }
		}
	}
}`

type productUseCase struct {
	repo    product.Repository
	gateway *avadmin.Gateway
	cache   *cache.RedisClient
	es      *search.Client
	logger  logger.ZapLogger
}

func NewProductUseCase(repo product.Repository, gateway *avadmin.Gateway, cache *cache.RedisClient, es *search.Client, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:    repo,
		gateway: gateway,
		cache:   cache,
		es:      es,
		logger:  log,
	}
}

// genProductCode produces catalog codes like ST482913A.
func genProductCode() string {
	letter := byte('A' + rand.IntN(26))
	return fmt.Sprintf("ST%06d%c", rand.IntN(1000000), letter)
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	// Advisory quota pre-check against the account service; fail-closed.
	if !uc.gateway.CanCreateProduct(ctx, input.AccountID) {
		return nil, product.ErrQuotaExceeded
	}

	code := genProductCode()
	for range 3 {
		unique, err := uc.repo.IsCodeUnique(ctx, code)
		if err != nil {
			return nil, err
		}
		if unique {
			break
		}
		code = genProductCode()
	}

	now := time.Now().UTC()
	p := &model.Product{
		BaseModel:         model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		AccountID:         input.AccountID,
		UserID:            input.UserID,
		Code:              code,
		Name:              input.Name,
		Price:             input.Price,
		MinStockAlert:     input.MinStockAlert,
		Condition:         input.Condition,
		Specifications:    input.Specifications,
		Images:            input.Images,
		ShippingRequired:  true,
		AllowsNegotiation: input.AllowsNegotiation,
	}
	if input.Description != "" {
		p.Description = &input.Description
	}
	if input.CategoryID != "" {
		catID := input.CategoryID
		p.CategoryID = &catID
	}
	if input.BrandID != "" {
		brandID := input.BrandID
		p.BrandID = &brandID
	}
	if input.OriginalPrice > 0 {
		orig := input.OriginalPrice
		p.OriginalPrice = &orig
	}
	if input.CostPrice > 0 {
		cost := input.CostPrice
		p.CostPrice = &cost
	}
	if input.Keywords != "" {
		p.Keywords = &input.Keywords
	}
	if p.MinStockAlert == 0 {
		p.MinStockAlert = 5
	}

	status := model.ProductStatusDraft
	if input.Publish {
		status = model.ProductStatusActive
	}
	p.RestoreStock(0, status)
	p.UpdateStock(input.StockQuantity, model.StockSet)

	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	// Remote usage accounting and index sync are best effort and must not
	// hold up the response.
	go uc.incrementUsage(input.AccountID)
	go uc.invalidateListCache(context.Background(), input.AccountID)
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) incrementUsage(accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !uc.gateway.IncrementUsageCounter(ctx, accountID, "products") {
		uc.logger.Warn("product usage counter increment did not land",
			zap.String("account_id", accountID))
	}
}

func (uc *productUseCase) syncToElastic(ctx context.Context, p *model.Product) {
	if uc.es == nil {
		return
	}

	_ = uc.es.CreateIndex(ctx, productsIndex, productsMapping)

	doc := map[string]any{
		"account_id":  p.AccountID,
		"code":        p.Code,
		"name":        p.Name,
		"description": p.Description,
		"keywords":    p.Keywords,
		"price":       p.Price,
		"status":      p.Status(),
		"created_at":  p.CreatedAt,
	}
	if err := uc.es.Index(ctx, productsIndex, p.ID, doc); err != nil {
		uc.logger.Error("failed to index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}

func (uc *productUseCase) listCacheKey(f *dto.ProductFilters) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("products:list:%s:%x", f.AccountID, md5.Sum(data)), nil
}

func (uc *productUseCase) invalidateListCache(ctx context.Context, accountID string) {
	if uc.cache == nil {
		return
	}
	pattern := fmt.Sprintf("products:list:%s:*", accountID)
	keys, err := uc.cache.Client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		uc.cache.Client.Del(ctx, keys...)
	}
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

type cachedList struct {
	Products []model.Product
	Count    int
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	cacheKey, keyErr := uc.listCacheKey(filters)
	if keyErr == nil && uc.cache != nil {
		if val, err := uc.cache.Client.Get(ctx, cacheKey).Result(); err == nil {
			var result cachedList
			if err := json.Unmarshal([]byte(val), &result); err == nil {
				return result.Products, result.Count, nil
			}
		}
	}

	// Search queries go through Elasticsearch when available; DB ILIKE is
	// the fallback.
	if filters.SearchQuery != "" && uc.es != nil {
		ids, total, err := uc.searchElastic(ctx, filters)
		if err == nil {
			products := make([]model.Product, 0, len(ids))
			for _, id := range ids {
				p, err := uc.repo.FindByID(ctx, id)
				if err == nil && p != nil {
					products = append(products, *p)
				}
			}
			return products, total, nil
		}
		uc.logger.Error("elasticsearch query failed, falling back to database", zap.Error(err))
	}

	products, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if keyErr == nil && uc.cache != nil {
		if data, err := json.Marshal(cachedList{Products: products, Count: count}); err == nil {
			uc.cache.Client.Set(ctx, cacheKey, data, 5*time.Minute)
		}
	}

	return products, count, nil
}

func (uc *productUseCase) searchElastic(ctx context.Context, f *dto.ProductFilters) ([]string, int, error) {
	must := []map[string]any{
		{
			"query_string": map[string]any{
				"query":  fmt.Sprintf("*%s*", f.SearchQuery),
				"fields": []string{"name^3", "code", "keywords", "description"},
			},
		},
	}
	if f.AccountID != "" {
		must = append(must, map[string]any{
			"term": map[string]any{"account_id": f.AccountID},
		})
	}

	q := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
		"_source": false,
	}
	if f.PageSize > 0 {
		q["from"] = (f.Page - 1) * f.PageSize
		q["size"] = f.PageSize
	}

	res, err := uc.es.Search(ctx, productsIndex, q)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, res.Hits.Total.Value, nil
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error) {
	p, err := uc.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, product.ErrProductNotFound
	}

	p.Name = input.Name
	p.Price = input.Price
	p.MinStockAlert = input.MinStockAlert
	p.Condition = input.Condition
	p.Specifications = input.Specifications
	p.Images = input.Images
	p.IsFeatured = input.IsFeatured
	p.AllowsNegotiation = input.AllowsNegotiation

	p.Description = nil
	if input.Description != "" {
		p.Description = &input.Description
	}
	p.CategoryID = nil
	if input.CategoryID != "" {
		catID := input.CategoryID
		p.CategoryID = &catID
	}
	p.BrandID = nil
	if input.BrandID != "" {
		brandID := input.BrandID
		p.BrandID = &brandID
	}
	p.OriginalPrice = nil
	if input.OriginalPrice > 0 {
		orig := input.OriginalPrice
		p.OriginalPrice = &orig
	}
	p.CostPrice = nil
	if input.CostPrice > 0 {
		cost := input.CostPrice
		p.CostPrice = &cost
	}
	p.Keywords = nil
	if input.Keywords != "" {
		p.Keywords = &input.Keywords
	}
	if input.Status != "" {
		p.SetStatus(input.Status)
	}
	p.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	go uc.invalidateListCache(context.Background(), p.AccountID)
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) DeleteProduct(ctx context.Context, id string) error {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return nil // already gone
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}

	go uc.invalidateListCache(context.Background(), p.AccountID)
	if uc.es != nil {
		go func() {
			if err := uc.es.Delete(context.Background(), productsIndex, id); err != nil {
				uc.logger.Error("failed to delete product from index",
					zap.String("product_id", id), zap.Error(err))
			}
		}()
	}

	return nil
}

// withStockLock serializes stock mutations per product, giving the ledger
// methods the exclusive-writer access their contract assumes.
func (uc *productUseCase) withStockLock(ctx context.Context, productID string, fn func(p *model.Product) error) (*model.Product, error) {
	if uc.cache != nil {
		lockKey := "lock:stock:" + productID
		lockValue := uuid.New().String()

		acquired := false
		for range 3 {
			ok, err := uc.cache.AcquireLock(ctx, lockKey, lockValue, 5*time.Second)
			if err != nil {
				uc.logger.Error("failed to acquire stock lock", zap.Error(err))
			}
			if ok {
				acquired = true
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if !acquired {
			return nil, product.ErrStockLockBusy
		}
		defer uc.cache.ReleaseLock(ctx, lockKey, lockValue)
	}

	p, err := uc.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, product.ErrProductNotFound
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	go uc.invalidateListCache(context.Background(), p.AccountID)
	return p, nil
}

func (uc *productUseCase) UpdateStock(ctx context.Context, productID string, quantity int, op model.StockOperation) (*model.Product, error) {
	return uc.withStockLock(ctx, productID, func(p *model.Product) error {
		p.UpdateStock(quantity, op)
		return nil
	})
}

func (uc *productUseCase) ReserveStock(ctx context.Context, productID string, quantity int) (*model.Product, error) {
	return uc.withStockLock(ctx, productID, func(p *model.Product) error {
		if !p.ReserveStock(quantity) {
			return product.ErrInsufficientStock
		}
		return nil
	})
}

func (uc *productUseCase) ReleaseStock(ctx context.Context, productID string, quantity int) (*model.Product, error) {
	return uc.withStockLock(ctx, productID, func(p *model.Product) error {
		p.ReleaseStock(quantity)
		return nil
	})
}

func (uc *productUseCase) RecordView(ctx context.Context, productID string) error {
	p, err := uc.repo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return product.ErrProductNotFound
	}
	p.IncrementViewCount()
	return uc.repo.Update(ctx, p)
}

func (uc *productUseCase) RecordContact(ctx context.Context, productID string) error {
	p, err := uc.repo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return product.ErrProductNotFound
	}
	p.IncrementContactCount()
	return uc.repo.Update(ctx, p)
}

func (uc *productUseCase) RecordFavorite(ctx context.Context, productID string) error {
	p, err := uc.repo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return product.ErrProductNotFound
	}
	p.AddToFavorites()
	return uc.repo.Update(ctx, p)
}

func (uc *productUseCase) RemoveFavorite(ctx context.Context, productID string) error {
	p, err := uc.repo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return product.ErrProductNotFound
	}
	p.RemoveFromFavorites()
	return uc.repo.Update(ctx, p)
}
