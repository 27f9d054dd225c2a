package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/api/responses"
	"github.com/adityamehra/shopkart-backend/api/validators"
	productsvc "github.com/adityamehra/shopkart-backend/internal/products"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
	"github.com/adityamehra/shopkart-backend/pkg/pagination"
)

// ListProducts returns the public catalog, filtered and paginated.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := pagination.FromRequest(r)
		filters := productsvc.ListFilters{
			Category:   validators.SanitizeString(r.URL.Query().Get("category"), 60),
			Query:      validators.SanitizeString(r.URL.Query().Get("q"), 120),
			ActiveOnly: true,
		}

		products, meta, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaginated(w, products, meta)
	}
}

// GetProduct returns one catalog entry with variants.
func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type variantRequest struct {
	Size  string  `json:"size" validate:"required"`
	Color *string `json:"color,omitempty"`
	Stock int     `json:"stock" validate:"min=0"`
}

type createProductRequest struct {
	Name        string           `json:"name" validate:"required,min=2,max=200"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category" validate:"required"`
	Price       decimal.Decimal  `json:"price" validate:"required"`
	Images      []string         `json:"images,omitempty" validate:"omitempty,dive,url"`
	Quantity    int              `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Variants    []variantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
}

// CreateProduct adds a catalog entry.
func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.CreateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			Price:       payload.Price,
			Images:      payload.Images,
			Quantity:    payload.Quantity,
		}
		for _, v := range payload.Variants {
			input.Variants = append(input.Variants, productsvc.VariantInput{
				Size:  v.Size,
				Color: v.Color,
				Stock: v.Stock,
			})
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Images      []string         `json:"images,omitempty" validate:"omitempty,dive,url"`
	Quantity    *int             `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Active      *bool            `json:"active,omitempty"`
}

// UpdateProduct changes catalog fields.
func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, productsvc.UpdateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			Price:       payload.Price,
			Images:      payload.Images,
			Quantity:    payload.Quantity,
			Active:      payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DeleteProduct retires a catalog entry.
func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// SetProductStock sets per-size stock on a product.
func SetProductStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload variantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetVariantStock(r.Context(), id, productsvc.VariantInput{
			Size:  strings.TrimSpace(payload.Size),
			Color: payload.Color,
			Stock: payload.Stock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
