package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/poovendhan-mathi/yekzen-cart/internal/currency"
)

type CurrencyDTO struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

type CurrenciesResponse struct {
	Base       string        `json:"base"`
	Currencies []CurrencyDTO `json:"currencies"`
}

type PreferenceDTO struct {
	Currency string `json:"currency"`
}

type CurrencyHandler struct{}

func NewCurrencyHandler() *CurrencyHandler {
	return &CurrencyHandler{}
}

// GET /api/v1/currencies
func (h *CurrencyHandler) List(w http.ResponseWriter, r *http.Request) {
	codes := currency.Supported()
	resp := CurrenciesResponse{Base: currency.Base, Currencies: make([]CurrencyDTO, 0, len(codes))}
	for _, code := range codes {
		def, err := currency.Lookup(code)
		if err != nil {
			continue
		}
		resp.Currencies = append(resp.Currencies, CurrencyDTO{Code: def.Code, Symbol: def.Symbol})
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/currency
func (h *CurrencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := getSession(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "session_unavailable", "no session bound to request")
		return
	}
	respondJSON(w, http.StatusOK, PreferenceDTO{Currency: s.Currency.UserCurrency()})
}

// PUT /api/v1/currency
func (h *CurrencyHandler) Set(w http.ResponseWriter, r *http.Request) {
	s, ok := getSession(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "session_unavailable", "no session bound to request")
		return
	}

	var req PreferenceDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := s.Currency.SetUserCurrency(r.Context(), req.Currency); err != nil {
		if errors.Is(err, currency.ErrUnsupportedCurrency) {
			respondErrorDetails(w, http.StatusBadRequest, "unsupported_currency", "currency is not supported", req.Currency)
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not save preference")
		return
	}
	respondJSON(w, http.StatusOK, PreferenceDTO{Currency: s.Currency.UserCurrency()})
}
