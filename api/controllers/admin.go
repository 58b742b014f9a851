package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/api/responses"
	"github.com/joinamana/amana-backend/api/validators"
	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/notify"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/logger"
)

// AdminApproveRetailer verifies a pending retailer and seeds their scorecard.
func AdminApproveRetailer(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := pathID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.ApproveRetailer(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AdminRejectRetailer declines a pending verification.
func AdminRejectRetailer(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := pathID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.RejectRetailer(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// AdminApproveVendor activates a vendor account for the marketplace.
func AdminApproveVendor(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := pathID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendor, err := svc.ApproveVendor(r.Context(), vid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}

type agentFlagRequest struct {
	IsAgent *bool `json:"is_agent" validate:"required"`
}

// AdminSetAgentFlag grants or revokes field-agent capability on a verified
// user.
func AdminSetAgentFlag(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := pathID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agentFlagRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.SetAgentFlag(r.Context(), uid, *payload.IsAgent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

type userActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// AdminSetUserActive suspends or restores an account.
func AdminSetUserActive(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := pathID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload userActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.SetUserActive(r.Context(), uid, *payload.IsActive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

type linkVendorRequest struct {
	VendorID string `json:"vendor_id" validate:"required,uuid"`
}

// AdminLinkVendorProfile ties a user account to a vendor profile in one shot.
// The linkage feeds the self-dealing guards.
func AdminLinkVendorProfile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := pathID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload linkVendorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendorID, err := uuid.Parse(payload.VendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor id"))
			return
		}

		if err := svc.LinkVendorProfile(r.Context(), uid, vendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "linked"})
	}
}

type broadcastRequest struct {
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// AdminBroadcast sends a free-form message to the back office channel.
func AdminBroadcast(notifier notify.Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload broadcastRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subject := validators.SanitizeString(payload.Subject, maxNameLen)
		message := validators.SanitizeString(payload.Message, maxTextLen)
		if err := notifier.Broadcast(r.Context(), subject, message); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send broadcast"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}
