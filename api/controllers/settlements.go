package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/api/middleware"
	"github.com/mkrogh/bookmarket-backend/api/responses"
	"github.com/mkrogh/bookmarket-backend/internal/payments"
	"github.com/mkrogh/bookmarket-backend/internal/users"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

// SellerSettlements lists payout periods for the authenticated seller. The
// settlement rows key on the public seller id, not the user id, so the
// profile lookup happens first.
func SellerSettlements(svc payments.Service, profiles users.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		profile, err := profiles.FindSellerProfileByUserID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "not a seller"))
			return
		}

		settlements, err := svc.GetSellerSettlements(r.Context(), profile.SellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settlements)
	}
}
