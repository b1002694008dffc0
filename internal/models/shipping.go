package models

import (
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceTypeEconomy  ServiceType = "ECONOMY"
	ServiceTypeStandard ServiceType = "STANDARD"
	ServiceTypeExpress  ServiceType = "EXPRESS"
)

// ParseServiceType returns "" for an empty or unsupported value.
func ParseServiceType(s string) ServiceType {
	switch st := ServiceType(strings.ToUpper(strings.TrimSpace(s))); st {
	case ServiceTypeEconomy, ServiceTypeStandard, ServiceTypeExpress:
		return st
	default:
		return ""
	}
}

type Address struct {
	ContactName  string `json:"contactName"`
	Company      string `json:"company,omitempty"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// IsZero reports whether the address carries nothing a carrier could route on.
func (a Address) IsZero() bool {
	return a.AddressLine1 == "" && a.City == "" && a.PostalCode == "" && a.Country == ""
}

type Package struct {
	Weight      float64 `json:"weight"`
	Length      float64 `json:"length"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Description string  `json:"description,omitempty"`
}

// TotalWeight sums package weights in request order.
func TotalWeight(pkgs []Package) float64 {
	var w float64
	for _, p := range pkgs {
		w += p.Weight
	}
	return w
}

type RateRequest struct {
	Shipper     Address     `json:"shipper"`
	Recipient   Address     `json:"recipient"`
	Packages    []Package   `json:"packages"`
	ServiceType ServiceType `json:"serviceType,omitempty"`
	Reference   string      `json:"reference,omitempty"`
}

type RateQuote struct {
	Provider     string      `json:"provider"`
	ServiceType  ServiceType `json:"serviceType"`
	ServiceName  string      `json:"serviceName,omitempty"`
	DeliveryDate time.Time   `json:"deliveryDate"`
	TotalAmount  float64     `json:"totalAmount"`
	Currency     string      `json:"currency"`
	TransitDays  int         `json:"transitDays"`
	RateID       string      `json:"rateId"`
}

type ShipmentRequest struct {
	Shipper     Address     `json:"shipper"`
	Recipient   Address     `json:"recipient"`
	Packages    []Package   `json:"packages"`
	ServiceType ServiceType `json:"serviceType"`
	Reference   string      `json:"reference"`
	Provider    string      `json:"provider,omitempty"`
}

type ShipmentResult struct {
	Provider       string  `json:"provider,omitempty"`
	ShipmentID     string  `json:"shipmentId"`
	TrackingNumber string  `json:"trackingNumber"`
	LabelURL       string  `json:"labelUrl"`
	TotalAmount    float64 `json:"totalAmount"`
	Currency       string  `json:"currency"`
}

type AddressValidation struct {
	IsValid          bool     `json:"isValid"`
	SuggestedAddress *Address `json:"suggestedAddress,omitempty"`
}

// Order is the slice of an order record the shipping core needs.
type Order struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Reference is what the carrier sees as the customer reference.
func (o Order) Reference() string {
	if o.Number != "" {
		return o.Number
	}
	return o.ID
}
