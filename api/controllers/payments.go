package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/api/middleware"
	"github.com/joinamana/amana-backend/api/responses"
	"github.com/joinamana/amana-backend/api/validators"
	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/gateway/paystack"
	paymentsvc "github.com/joinamana/amana-backend/internal/payments"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/logger"
	"github.com/joinamana/amana-backend/pkg/pagination"
)

type initializePaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	// RetailerID lets an agent repay on another retailer's behalf. Only
	// agents may set it; everyone else pays their own debt.
	RetailerID string `json:"retailer_id,omitempty" validate:"omitempty,uuid"`
	// Optional target narrows the repayment to one obligation.
	TargetKind string `json:"target_kind,omitempty" validate:"omitempty,oneof=order agent_purchase"`
	TargetID   string `json:"target_id,omitempty" validate:"omitempty,uuid"`
}

type initializePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// PaymentInitialize opens a hosted checkout session for a repayment. The
// retailer id and optional target ride along as gateway metadata so the
// webhook can reconcile without a lookup table.
func PaymentInitialize(gateway paystack.Client, accountsSvc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initializePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := accountsSvc.GetUser(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retailerID := uid
		if payload.RetailerID != "" && payload.RetailerID != uid.String() {
			if !middleware.IsAgentFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only agents may repay for another retailer"))
				return
			}
			retailerID, err = uuid.Parse(payload.RetailerID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid retailer id"))
				return
			}
		}

		metadata := map[string]any{
			"retailer_id": retailerID.String(),
			"payer_id":    uid.String(),
		}
		if payload.TargetKind != "" && payload.TargetID != "" {
			metadata["target_kind"] = payload.TargetKind
			metadata["target_id"] = payload.TargetID
		}

		reference := fmt.Sprintf("REPAY-%s", uuid.NewString())
		result, err := gateway.InitializeTransaction(r.Context(), paystack.InitializeInput{
			Email:     user.Email,
			Amount:    payload.Amount,
			Reference: reference,
			Metadata:  metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize payment"))
			return
		}

		responses.WriteSuccess(w, initializePaymentResponse{
			Reference:        result.Reference,
			AuthorizationURL: result.AuthorizationURL,
			AccessCode:       result.AccessCode,
		})
	}
}

// PaymentVerify is the polling fallback for clients that missed the webhook.
// It re-verifies against the gateway and runs the same reconciliation; the
// reference makes the second pass a no-op if the webhook already landed.
func PaymentVerify(gateway paystack.Client, svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reference := chi.URLParam(r, "reference")
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference required"))
			return
		}

		verified, err := gateway.VerifyTransaction(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment"))
			return
		}
		if verified.Status != "success" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not successful").
				WithDetails(map[string]any{"status": verified.Status}))
			return
		}

		// Metadata from initialize decides whose debt this is; the caller is
		// only the default when it is absent.
		retailerID := uid
		if fromMeta, err := retailerFromMetadata(verified.Metadata); err == nil {
			retailerID = fromMeta
		}
		input := paymentsvc.PaymentInput{
			Reference:  verified.Reference,
			RetailerID: retailerID,
			PayerID:    uid,
			Amount:     verified.Amount,
			Channel:    verified.Channel,
		}
		if kind, id, ok := targetFromMetadata(verified.Metadata); ok {
			input.TargetKind = kind
			input.TargetID = id
		}

		result, err := svc.ProcessConfirmedPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TransactionList returns one cursor page of the authenticated user's
// transactions, newest first.
func TransactionList(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByUserPage(r.Context(), uid, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":       page.Items,
			"next_cursor": page.NextCursor,
		})
	}
}

// VendorTransactionList returns the vendor's wallet transactions.
func VendorTransactionList(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := svc.ListByVendor(r.Context(), vid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txns)
	}
}
