package controllers

import (
	"net/http"

	"github.com/joinamana/amana-backend/api/responses"
	"github.com/joinamana/amana-backend/api/validators"
	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/pkg/logger"
)

type onboardingRequest struct {
	BusinessName      string `json:"business_name" validate:"required"`
	BusinessAgeYears  int    `json:"business_age_years" validate:"min=0"`
	HasShopLocation   bool   `json:"has_shop_location"`
	CapitalBand       string `json:"capital_band" validate:"required,oneof=high medium low"`
	PsychometricScore int    `json:"psychometric_score" validate:"min=0,max=75"`
	KYCComplete       bool   `json:"kyc_complete"`
}

// RetailerOnboarding records the business facts that feed the initial trust
// score. Verification stays pending until an admin approves.
func RetailerOnboarding(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload onboardingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.SubmitOnboarding(r.Context(), accounts.OnboardingInput{
			UserID:            uid,
			BusinessName:      payload.BusinessName,
			BusinessAgeYears:  payload.BusinessAgeYears,
			HasShopLocation:   payload.HasShopLocation,
			CapitalBand:       payload.CapitalBand,
			PsychometricScore: payload.PsychometricScore,
			KYCComplete:       payload.KYCComplete,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// RetailerProfile returns the authenticated user's account, including the
// current scorecard.
func RetailerProfile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.GetUser(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// VendorProfile returns the authenticated vendor's account.
func VendorProfile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendor, err := svc.GetVendor(r.Context(), vid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}

type vendorBankRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,min=10,max=10"`
	AccountName   string `json:"account_name" validate:"required"`
}

// VendorUpdateBank sets the payout destination on file.
func VendorUpdateBank(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload vendorBankRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendor, err := svc.UpdateVendorBank(r.Context(), accounts.VendorBankInput{
			VendorID:      vid,
			BankName:      payload.BankName,
			AccountNumber: payload.AccountNumber,
			AccountName:   payload.AccountName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}
