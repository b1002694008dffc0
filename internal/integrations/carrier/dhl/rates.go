package dhl

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
)

type account struct {
	TypeCode string `json:"typeCode"`
	Number   string `json:"number"`
}

type rateAddress struct {
	PostalCode   string `json:"postalCode"`
	CityName     string `json:"cityName"`
	CountryCode  string `json:"countryCode"`
	ProvinceCode string `json:"provinceCode,omitempty"`
	AddressLine1 string `json:"addressLine1,omitempty"`
}

type dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type dhlPackage struct {
	Weight      float64     `json:"weight"`
	Dimensions  *dimensions `json:"dimensions,omitempty"`
	Description string      `json:"description,omitempty"`
}

type rateRequest struct {
	CustomerDetails struct {
		ShipperDetails  rateAddress `json:"shipperDetails"`
		ReceiverDetails rateAddress `json:"receiverDetails"`
	} `json:"customerDetails"`
	Accounts                   []account    `json:"accounts"`
	PlannedShippingDateAndTime string       `json:"plannedShippingDateAndTime"`
	UnitOfMeasurement          string       `json:"unitOfMeasurement"`
	IsCustomsDeclarable        bool         `json:"isCustomsDeclarable"`
	Packages                   []dhlPackage `json:"packages"`
}

type price struct {
	CurrencyType  string  `json:"currencyType"`
	PriceCurrency string  `json:"priceCurrency"`
	Price         float64 `json:"price"`
}

type rateProduct struct {
	ProductName          string  `json:"productName"`
	ProductCode          string  `json:"productCode"`
	TotalPrice           []price `json:"totalPrice"`
	DeliveryCapabilities struct {
		EstimatedDeliveryDateAndTime string  `json:"estimatedDeliveryDateAndTime"`
		TotalTransitDays             flexInt `json:"totalTransitDays"`
	} `json:"deliveryCapabilities"`
}

type rateResponse struct {
	Products []rateProduct `json:"products"`
}

func toRateAddress(a models.Address) rateAddress {
	return rateAddress{
		PostalCode:   a.PostalCode,
		CityName:     a.City,
		CountryCode:  a.Country,
		ProvinceCode: a.State,
		AddressLine1: a.AddressLine1,
	}
}

func toPackages(pkgs []models.Package) []dhlPackage {
	out := make([]dhlPackage, 0, len(pkgs))
	for _, p := range pkgs {
		dp := dhlPackage{Weight: p.Weight, Description: p.Description}
		if p.Length > 0 && p.Width > 0 && p.Height > 0 {
			dp.Dimensions = &dimensions{Length: p.Length, Width: p.Width, Height: p.Height}
		}
		out = append(out, dp)
	}
	return out
}

func isCustomsDeclarable(shipper, recipient models.Address) bool {
	return !strings.EqualFold(shipper.Country, recipient.Country)
}

// GetRates asks DHL for every product available on the lane. When a service type is
// requested only matching products are returned, unless none match.
func (c *Client) GetRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	var body rateRequest
	body.CustomerDetails.ShipperDetails = toRateAddress(req.Shipper)
	body.CustomerDetails.ReceiverDetails = toRateAddress(req.Recipient)
	body.Accounts = []account{{TypeCode: "shipper", Number: c.cfg.AccountNumber}}
	body.PlannedShippingDateAndTime = c.plannedShippingDate()
	body.UnitOfMeasurement = "metric"
	body.IsCustomsDeclarable = isCustomsDeclarable(req.Shipper, req.Recipient)
	body.Packages = toPackages(req.Packages)

	var rb rateResponse
	if err := c.do(ctx, "get_rates", http.MethodPost, "/rates", nil, body, &rb); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	all := make([]models.RateQuote, 0, len(rb.Products))
	for _, p := range rb.Products {
		all = append(all, c.toQuote(p, now))
	}

	if req.ServiceType == "" {
		return all, nil
	}
	var matched []models.RateQuote
	for _, q := range all {
		if q.ServiceType == req.ServiceType {
			matched = append(matched, q)
		}
	}
	if len(matched) == 0 {
		return all, nil
	}
	return matched, nil
}

func (c *Client) toQuote(p rateProduct, now time.Time) models.RateQuote {
	amount, currency := pickPrice(p.TotalPrice)
	transit := int(p.DeliveryCapabilities.TotalTransitDays)

	delivery, err := time.Parse("2006-01-02T15:04:05", p.DeliveryCapabilities.EstimatedDeliveryDateAndTime)
	if err != nil {
		delivery = now.AddDate(0, 0, transit)
	}

	return models.RateQuote{
		Provider:     ProviderName,
		ServiceType:  serviceTypeForProduct(p.ProductCode),
		ServiceName:  p.ProductName,
		DeliveryDate: delivery,
		TotalAmount:  amount,
		Currency:     currency,
		TransitDays:  transit,
		RateID:       "dhl-" + strings.ToLower(p.ProductCode),
	}
}

// pickPrice prefers the billing currency price (BILLC) over the others.
func pickPrice(prices []price) (float64, string) {
	for _, p := range prices {
		if p.CurrencyType == "BILLC" {
			return p.Price, p.PriceCurrency
		}
	}
	if len(prices) > 0 {
		return prices[0].Price, prices[0].PriceCurrency
	}
	return 0, ""
}
