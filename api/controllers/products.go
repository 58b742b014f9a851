package controllers

import (
	"net/http"

	"github.com/joinamana/amana-backend/api/responses"
	"github.com/joinamana/amana-backend/api/validators"
	productsvc "github.com/joinamana/amana-backend/internal/products"
	"github.com/joinamana/amana-backend/pkg/logger"
)

type createProductRequest struct {
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description,omitempty"`
	Price        float64 `json:"price" validate:"required,gt=0"`
	CountInStock int     `json:"count_in_stock" validate:"min=0"`
	ImageURL     *string `json:"image_url,omitempty"`
}

// VendorCreateProduct adds a catalog entry for the authenticated vendor.
func VendorCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateProductInput{
			VendorID:     vid,
			Name:         validators.SanitizeString(payload.Name, maxNameLen),
			Description:  sanitizeOptional(payload.Description, maxTextLen),
			Price:        payload.Price,
			CountInStock: payload.CountInStock,
			ImageURL:     payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Price        *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	CountInStock *int     `json:"count_in_stock,omitempty" validate:"omitempty,min=0"`
	ImageURL     *string  `json:"image_url,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

// VendorUpdateProduct mutates price, stock or the active flag. Only the owning
// vendor may call it.
func VendorUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), productsvc.UpdateProductInput{
			ProductID:    pid,
			VendorID:     vid,
			Name:         sanitizeOptional(payload.Name, maxNameLen),
			Description:  sanitizeOptional(payload.Description, maxTextLen),
			Price:        payload.Price,
			CountInStock: payload.CountInStock,
			ImageURL:     payload.ImageURL,
			IsActive:     payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// VendorListProducts returns the authenticated vendor's catalog.
func VendorListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.ListByVendor(r.Context(), vid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductDetail returns a single catalog entry.
func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), pid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
