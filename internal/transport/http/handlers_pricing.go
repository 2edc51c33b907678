package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/httputil"
)

// PricingHandler exposes standalone rate quotes, used by loan officers before
// a file reaches underwriting.
type PricingHandler struct {
	pricer Pricer
}

func NewPricingHandler(pricer Pricer) *PricingHandler {
	return &PricingHandler{pricer: pricer}
}

func (h *PricingHandler) Register(r chi.Router) {
	r.Post("/pricing/quote", h.handleQuote)
}

func (h *PricingHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	input, err := httputil.Decode[domain.PricingInput](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.pricer.Price(input))
}
