package controllers

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/api/responses"
	"github.com/joinamana/amana-backend/internal/gateway/paystack"
	paymentsvc "github.com/joinamana/amana-backend/internal/payments"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/logger"
)

const paystackSignatureHeader = "x-paystack-signature"

// PaystackWebhook handles gateway callbacks. Signature failures are rejected
// before the body is parsed. Events other than charge.success are
// acknowledged and dropped so Paystack stops retrying them.
func PaystackWebhook(gateway paystack.Client, svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		if !gateway.VerifyWebhookSignature(body, r.Header.Get(paystackSignatureHeader)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		event, err := paystack.ParseWebhookEvent(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook event"))
			return
		}

		if event.Event != "charge.success" {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		retailerID, err := retailerFromMetadata(event.Data.Metadata)
		if err != nil {
			// Acknowledged so the gateway stops retrying; the payment cannot
			// be attributed without the metadata we attached at initialize.
			if logg != nil {
				ctx := logg.WithField(r.Context(), "reference", event.Data.Reference)
				logg.Error(ctx, "webhook missing retailer metadata", err)
			}
			responses.WriteSuccess(w, map[string]string{"status": "unattributed"})
			return
		}

		input := paymentsvc.PaymentInput{
			Reference:  event.Data.Reference,
			RetailerID: retailerID,
			Amount:     event.AmountNaira(),
			Channel:    event.Data.Channel,
		}
		if raw, ok := event.Data.Metadata["payer_id"].(string); ok {
			if payerID, err := uuid.Parse(raw); err == nil {
				input.PayerID = payerID
			}
		}
		if kind, id, ok := targetFromMetadata(event.Data.Metadata); ok {
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

func retailerFromMetadata(metadata map[string]any) (uuid.UUID, error) {
	raw, ok := metadata["retailer_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "retailer_id metadata missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid retailer_id metadata")
	}
	return id, nil
}

func targetFromMetadata(metadata map[string]any) (paymentsvc.ObligationKind, uuid.UUID, bool) {
	rawKind, ok := metadata["target_kind"].(string)
	if !ok || rawKind == "" {
		return "", uuid.Nil, false
	}
	rawID, ok := metadata["target_id"].(string)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, false
	}
	return paymentsvc.ObligationKind(rawKind), id, true
}
