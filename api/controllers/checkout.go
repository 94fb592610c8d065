package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkrogh/bookmarket-backend/api/middleware"
	"github.com/mkrogh/bookmarket-backend/api/responses"
	"github.com/mkrogh/bookmarket-backend/api/validators"
	"github.com/mkrogh/bookmarket-backend/internal/checkout"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// The delivery address is an optional override; an empty body falls back to
// the customer's stored default address.
type createCheckoutRequest struct {
	Street     string `json:"street" validate:"max=200"`
	City       string `json:"city" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"max=20"`
	State      string `json:"state" validate:"max=100"`
	Country    string `json:"country" validate:"max=100"`
}

func (r createCheckoutRequest) empty() bool {
	return r.Street == "" && r.City == "" && r.PostalCode == "" && r.State == "" && r.Country == ""
}

type confirmCheckoutRequest struct {
	PaymentToken string `json:"paymentToken" validate:"required,max=200"`
}

func CheckoutCreate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createCheckoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var address types.Address
		if !body.empty() {
			var err error
			address, err = types.NewAddress(body.Street, body.City, body.PostalCode, body.State, body.Country)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address"))
				return
			}
		}

		dto, err := svc.CreateSession(r.Context(), middleware.UserIDFromContext(r.Context()), checkout.CreateSessionInput{
			DeliveryAddress: address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func CheckoutFetch(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dto, err := svc.GetSession(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "sessionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func CheckoutConfirm(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body confirmCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "sessionId"), checkout.ConfirmPaymentInput{
			PaymentToken: body.PaymentToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
