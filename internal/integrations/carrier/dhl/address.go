package dhl

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
)

type addressValidateResponse struct {
	Address []struct {
		CountryCode string `json:"countryCode"`
		PostalCode  string `json:"postalCode"`
		CityName    string `json:"cityName"`
		CountyName  string `json:"countyName"`
	} `json:"address"`
}

// ValidateAddress checks the postal code and city against DHL's service areas.
// Only 400, 404 and 422 mean the address is not deliverable. Any other failure,
// auth and throttling included, is treated as valid.
func (c *Client) ValidateAddress(ctx context.Context, addr models.Address) (models.AddressValidation, error) {
	q := url.Values{}
	q.Set("type", "delivery")
	q.Set("countryCode", addr.Country)
	if addr.PostalCode != "" {
		q.Set("postalCode", addr.PostalCode)
	}
	if addr.City != "" {
		q.Set("cityName", addr.City)
	}

	var rb addressValidateResponse
	err := c.do(ctx, "validate_address", http.MethodGet, "/address-validate", q, nil, &rb)
	if err != nil {
		if ce, ok := carrier.AsError(err); ok && rejectsAddress(ce.StatusCode) {
			return models.AddressValidation{IsValid: false}, nil
		}
		slog.Warn("dhl address validation unavailable, assuming valid", "err", err)
		return models.AddressValidation{IsValid: true}, nil
	}

	if len(rb.Address) == 0 {
		return models.AddressValidation{IsValid: false}, nil
	}

	match := rb.Address[0]
	res := models.AddressValidation{IsValid: true}
	if (match.PostalCode != "" && match.PostalCode != addr.PostalCode) ||
		(match.CityName != "" && !strings.EqualFold(match.CityName, addr.City)) {
		s := addr
		if match.PostalCode != "" {
			s.PostalCode = match.PostalCode
		}
		if match.CityName != "" {
			s.City = match.CityName
		}
		res.SuggestedAddress = &s
	}
	return res, nil
}

func rejectsAddress(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
