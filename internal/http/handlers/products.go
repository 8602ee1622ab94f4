package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/calebross/markethub/internal/cache"
	"github.com/calebross/markethub/internal/datastore"
	"github.com/calebross/markethub/internal/http/middlewares"
	"github.com/calebross/markethub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userProductsCachePrefix = "user_products_"

// ProductsHandler fronts the products collection in the data store. Products
// are open-shaped objects; the handler only cares about title, category and
// the two fields it injects at upload time (product_id, user_id).
type ProductsHandler struct {
	store datastore.Store
	cache cache.Cache
	prom  *observability.Prom
}

func NewProductsHandler(store datastore.Store, c cache.Cache, prom *observability.Prom) *ProductsHandler {
	return &ProductsHandler{store: store, cache: c, prom: prom}
}

func (h *ProductsHandler) Upload(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid or expired token")
		return
	}

	var product map[string]any

	if !BindJSON(ctx, &product) {
		return
	}

	title, _ := product["title"].(string)

	if title == "" {
		RespondBadRequest(ctx, "Required field missing: title")
		return
	}

	productID := uuid.NewString()
	product["product_id"] = productID
	product["user_id"] = uid

	err := h.store.Write(ctx.Request.Context(), "products/"+productID, product)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "product_upload_failed", "err", err, "uid", uid)
		RespondInternal(ctx, "An error occurred while uploading the product")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":    "Product uploaded successfully",
		"product_id": productID,
	})
}

// UserProducts lists the caller's products. The per-user cache is consulted
// first and populated after the store read, empty result included. Product
// writes do not invalidate it; see the cache package doc.
func (h *ProductsHandler) UserProducts(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid or expired token")
		return
	}

	key := userProductsCachePrefix + uid

	if body, hit := h.cache.Get(ctx.Request.Context(), key); hit {
		if h.prom != nil {
			h.prom.CacheHits.WithLabelValues("user_products").Inc()
		}

		ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	if h.prom != nil {
		h.prom.CacheMisses.WithLabelValues("user_products").Inc()
	}

	products, err := h.store.QueryEqual(ctx.Request.Context(), "products", "user_id", uid)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "user_products_query_failed", "err", err, "uid", uid)
		RespondBadRequest(ctx, "An error occurred while fetching products")
		return
	}

	body, err := json.Marshal(products)

	if err != nil {
		RespondBadRequest(ctx, "An error occurred while fetching products")
		return
	}

	h.cache.Set(ctx.Request.Context(), key, body)

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *ProductsHandler) Delete(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid or expired token")
		return
	}

	productID := ctx.Param("product_id")

	product, err := h.store.Read(ctx.Request.Context(), "products/"+productID)

	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			RespondNotFound(ctx, "Product not found")
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "product_read_failed", "err", err, "product_id", productID)
		RespondInternal(ctx, "An error occurred while deleting the product")
		return
	}

	if owner, _ := product["user_id"].(string); owner != uid {
		slog.Default().WarnContext(ctx.Request.Context(), "unauthorized_delete_attempt", "product_id", productID, "uid", uid)
		RespondForbidden(ctx, "Unauthorized")
		return
	}

	err = h.store.Delete(ctx.Request.Context(), "products/"+productID)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "product_delete_failed", "err", err, "product_id", productID)
		RespondInternal(ctx, "An error occurred while deleting the product")
		return
	}

	RespondMessage(ctx, http.StatusOK, "Product deleted successfully")
}

func (h *ProductsHandler) Info(ctx *gin.Context) {
	productID := ctx.Param("product_id")

	product, err := h.store.Read(ctx.Request.Context(), "products/"+productID)

	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			RespondNotFound(ctx, "Product not found")
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "product_read_failed", "err", err, "product_id", productID)
		RespondInternal(ctx, "An error occurred while accessing the database")
		return
	}

	// reads are not owner-restricted
	ctx.JSON(http.StatusOK, product)
}

func (h *ProductsHandler) All(ctx *gin.Context) {
	products, err := h.store.Read(ctx.Request.Context(), "products")

	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			RespondMessage(ctx, http.StatusOK, "No products available")
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "all_products_read_failed", "err", err)
		RespondInternal(ctx, "An error occurred while fetching products")
		return
	}

	if len(products) == 0 {
		RespondMessage(ctx, http.StatusOK, "No products available")
		return
	}

	ctx.JSON(http.StatusOK, products)
}

func (h *ProductsHandler) Update(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid or expired token")
		return
	}

	productID := ctx.Param("product_id")

	var partial map[string]any

	if !BindJSON(ctx, &partial) {
		return
	}

	if len(partial) == 0 {
		RespondBadRequest(ctx, "Request body is required")
		return
	}

	product, err := h.store.Read(ctx.Request.Context(), "products/"+productID)

	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			RespondNotFound(ctx, "Product not found")
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "product_read_failed", "err", err, "product_id", productID)
		RespondInternal(ctx, "An error occurred while updating the product")
		return
	}

	if owner, _ := product["user_id"].(string); owner != uid {
		slog.Default().WarnContext(ctx.Request.Context(), "unauthorized_update_attempt", "product_id", productID, "uid", uid)
		RespondForbidden(ctx, "Unauthorized")
		return
	}

	err = h.store.Update(ctx.Request.Context(), "products/"+productID, partial)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "product_update_failed", "err", err, "product_id", productID)
		RespondInternal(ctx, "An error occurred while updating the product")
		return
	}

	RespondMessage(ctx, http.StatusOK, "Product updated successfully")
}

func (h *ProductsHandler) Search(ctx *gin.Context) {
	query, exists := ctx.GetQuery("query")

	if !exists || strings.TrimSpace(query) == "" {
		RespondBadRequest(ctx, "Search query is required")
		return
	}

	// titles are matched exactly, lowercased
	query = strings.ToLower(strings.TrimSpace(query))

	products, err := h.store.QueryEqual(ctx.Request.Context(), "products", "title", query)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "product_search_failed", "err", err, "query", query)
		RespondInternal(ctx, "An error occurred while searching products")
		return
	}

	if len(products) == 0 {
		RespondNotFound(ctx, "No products found")
		return
	}

	ctx.JSON(http.StatusOK, products)
}

func (h *ProductsHandler) ByCategory(ctx *gin.Context) {
	category := ctx.Param("category_name")

	products, err := h.store.QueryEqual(ctx.Request.Context(), "products", "category", category)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "products_by_category_failed", "err", err, "category", category)
		RespondInternal(ctx, "An error occurred while fetching products")
		return
	}

	if len(products) == 0 {
		RespondNotFound(ctx, "No products found for the given category")
		return
	}

	ctx.JSON(http.StatusOK, products)
}
