package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/api/middleware"
	"github.com/joinamana/amana-backend/api/responses"
	"github.com/joinamana/amana-backend/api/validators"
	aapsvc "github.com/joinamana/amana-backend/internal/aap"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/logger"
)

type createDraftRequest struct {
	Description   string   `json:"description" validate:"required"`
	VendorName    string   `json:"vendor_name" validate:"required"`
	PurchasePrice float64  `json:"purchase_price" validate:"required,gt=0"`
	PhotoURLs     []string `json:"photo_urls" validate:"min=1,dive,url"`
}

// PurchaseCreateDraft records an agent's sourcing find before a retailer is
// attached.
func PurchaseCreateDraft(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.CreateDraft(r.Context(), aapsvc.CreateDraftInput{
			AgentID:       aid,
			Description:   validators.SanitizeString(payload.Description, maxTextLen),
			VendorName:    validators.SanitizeString(payload.VendorName, maxNameLen),
			PurchasePrice: payload.PurchasePrice,
			PhotoURLs:     payload.PhotoURLs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}

type submitPurchaseRequest struct {
	RetailerID string `json:"retailer_id" validate:"required,uuid"`
	TermDays   int    `json:"term_days" validate:"required"`
}

// PurchaseSubmit attaches a retailer and term to a draft, pricing it against
// the retailer's scorecard.
func PurchaseSubmit(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retailerID, err := uuid.Parse(payload.RetailerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid retailer id"))
			return
		}

		purchase, err := svc.SubmitToRetailer(r.Context(), aapsvc.SubmitInput{
			PurchaseID: pid,
			AgentID:    aid,
			RetailerID: retailerID,
			TermDays:   payload.TermDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// PurchaseRetailerConfirm moves a submitted purchase to the admin approval
// queue.
func PurchaseRetailerConfirm(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.RetailerConfirm(r.Context(), aapsvc.RetailerActionInput{
			PurchaseID: pid,
			RetailerID: uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

type approvePurchaseRequest struct {
	Method    string `json:"method" validate:"required"`
	Reference string `json:"reference,omitempty"`
}

// PurchaseAdminApprove releases funds to the agent and starts the disbursement
// window.
func PurchaseAdminApprove(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload approvePurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParseDisbursementMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid disbursement method"))
			return
		}

		purchase, err := svc.AdminApprove(r.Context(), aapsvc.AdminApproveInput{
			PurchaseID: pid,
			Method:     method,
			Reference:  payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// PurchaseMarkDelivered is the agent's delivery claim. Claims past the
// disbursement window flip the purchase to expired instead.
func PurchaseMarkDelivered(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.MarkDelivered(r.Context(), aapsvc.MarkDeliveredInput{
			PurchaseID: pid,
			AgentID:    aid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

type confirmReceiptRequest struct {
	Code string `json:"code" validate:"required"`
}

// PurchaseConfirmReceipt is the retailer's code-gated goods confirmation. This
// is where the debt is recognized.
func PurchaseConfirmReceipt(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmReceiptRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.ConfirmReceipt(r.Context(), aapsvc.ConfirmReceiptInput{
			PurchaseID: pid,
			RetailerID: uid,
			Code:       payload.Code,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// PurchaseComplete closes a received purchase.
func PurchaseComplete(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.Complete(r.Context(), aapsvc.RetailerActionInput{
			PurchaseID: pid,
			RetailerID: uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

type declinePurchaseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// PurchaseDecline aborts a purchase before debt is recognized. Who may decline
// depends on the stage; the service enforces it.
func PurchaseDecline(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload declinePurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown role"))
			return
		}

		purchase, err := svc.Decline(r.Context(), aapsvc.DeclineInput{
			PurchaseID: pid,
			ActorID:    uid,
			ActorRole:  role,
			Reason:     validators.SanitizeString(payload.Reason, maxTextLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// PurchaseDetail returns a single purchase.
func PurchaseDetail(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, err := pathID(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.Get(r.Context(), pid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}

// AgentPurchaseList returns the agent's purchases.
func AgentPurchaseList(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchases, err := svc.ListByAgent(r.Context(), aid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchases)
	}
}

// RetailerPurchaseList returns the purchases submitted to the retailer.
func RetailerPurchaseList(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchases, err := svc.ListByRetailer(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchases)
	}
}

// AdminPurchaseQueue returns the purchases waiting for funding approval.
func AdminPurchaseQueue(svc aapsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purchases, err := svc.ListPendingApproval(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchases)
	}
}
