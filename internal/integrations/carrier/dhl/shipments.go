package dhl

import (
	"context"
	"net/http"
	"strings"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
)

type postalAddress struct {
	PostalCode   string `json:"postalCode"`
	CityName     string `json:"cityName"`
	CountryCode  string `json:"countryCode"`
	ProvinceCode string `json:"provinceCode,omitempty"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
}

type contactInformation struct {
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone"`
	CompanyName string `json:"companyName"`
	FullName    string `json:"fullName"`
}

type party struct {
	PostalAddress      postalAddress      `json:"postalAddress"`
	ContactInformation contactInformation `json:"contactInformation"`
}

type reference struct {
	Value    string `json:"value"`
	TypeCode string `json:"typeCode"`
}

type shipmentRequest struct {
	PlannedShippingDateAndTime string `json:"plannedShippingDateAndTime"`
	Pickup                     struct {
		IsRequested bool `json:"isRequested"`
	} `json:"pickup"`
	ProductCode        string      `json:"productCode"`
	Accounts           []account   `json:"accounts"`
	CustomerReferences []reference `json:"customerReferences,omitempty"`
	CustomerDetails    struct {
		ShipperDetails  party `json:"shipperDetails"`
		ReceiverDetails party `json:"receiverDetails"`
	} `json:"customerDetails"`
	Content struct {
		Packages            []dhlPackage `json:"packages"`
		IsCustomsDeclarable bool         `json:"isCustomsDeclarable"`
		Description         string       `json:"description"`
		UnitOfMeasurement   string       `json:"unitOfMeasurement"`
	} `json:"content"`
	OutputImageProperties struct {
		EncodingFormat string `json:"encodingFormat"`
	} `json:"outputImageProperties"`
}

type shipmentResponse struct {
	ShipmentTrackingNumber     string  `json:"shipmentTrackingNumber"`
	DispatchConfirmationNumber string  `json:"dispatchConfirmationNumber"`
	TrackingURL                string  `json:"trackingUrl"`
	ShipmentCharges            []price `json:"shipmentCharges"`
	Documents                  []struct {
		ImageFormat string `json:"imageFormat"`
		Content     string `json:"content"`
		TypeCode    string `json:"typeCode"`
	} `json:"documents"`
}

func toParty(a models.Address) party {
	company := a.Company
	if company == "" {
		company = a.ContactName
	}
	return party{
		PostalAddress: postalAddress{
			PostalCode:   a.PostalCode,
			CityName:     a.City,
			CountryCode:  a.Country,
			ProvinceCode: a.State,
			AddressLine1: a.AddressLine1,
			AddressLine2: a.AddressLine2,
		},
		ContactInformation: contactInformation{
			Email:       a.Email,
			Phone:       a.Phone,
			CompanyName: company,
			FullName:    a.ContactName,
		},
	}
}

// missingShipperField names the first shipper field DHL requires that is empty.
func missingShipperField(a models.Address) string {
	switch {
	case a.ContactName == "":
		return "shipper contact name"
	case a.Phone == "":
		return "shipper phone"
	case a.AddressLine1 == "":
		return "shipper address line"
	case a.City == "":
		return "shipper city"
	case a.Country == "":
		return "shipper country"
	}
	return ""
}

func (c *Client) CreateShipment(ctx context.Context, req models.ShipmentRequest) (models.ShipmentResult, error) {
	const op = "create_shipment"
	if f := missingShipperField(req.Shipper); f != "" {
		return models.ShipmentResult{}, carrier.NotConfigured(ProviderName, op, f)
	}

	var body shipmentRequest
	body.PlannedShippingDateAndTime = c.plannedShippingDate()
	body.ProductCode = productForService(req.ServiceType, !isCustomsDeclarable(req.Shipper, req.Recipient))
	body.Accounts = []account{{TypeCode: "shipper", Number: c.cfg.AccountNumber}}
	if req.Reference != "" {
		body.CustomerReferences = []reference{{Value: req.Reference, TypeCode: "CU"}}
	}
	body.CustomerDetails.ShipperDetails = toParty(req.Shipper)
	body.CustomerDetails.ReceiverDetails = toParty(req.Recipient)
	body.Content.Packages = toPackages(req.Packages)
	body.Content.IsCustomsDeclarable = isCustomsDeclarable(req.Shipper, req.Recipient)
	body.Content.Description = contentDescription(req)
	body.Content.UnitOfMeasurement = "metric"
	body.OutputImageProperties.EncodingFormat = "pdf"

	var rb shipmentResponse
	if err := c.do(ctx, op, http.MethodPost, "/shipments", nil, body, &rb); err != nil {
		return models.ShipmentResult{}, err
	}
	if rb.ShipmentTrackingNumber == "" {
		return models.ShipmentResult{}, carrier.HTTPError(ProviderName, op, http.StatusOK, nil, "response has no tracking number")
	}

	amount, currency := pickPrice(rb.ShipmentCharges)
	shipmentID := rb.DispatchConfirmationNumber
	if shipmentID == "" {
		shipmentID = rb.ShipmentTrackingNumber
	}

	return models.ShipmentResult{
		Provider:       ProviderName,
		ShipmentID:     shipmentID,
		TrackingNumber: rb.ShipmentTrackingNumber,
		LabelURL:       labelURL(rb),
		TotalAmount:    amount,
		Currency:       currency,
	}, nil
}

// labelURL inlines the label document as a data URL; DHL does not host labels.
func labelURL(rb shipmentResponse) string {
	for _, d := range rb.Documents {
		if strings.EqualFold(d.TypeCode, "label") && d.Content != "" {
			format := strings.ToLower(d.ImageFormat)
			if format == "" {
				format = "pdf"
			}
			return "data:application/" + format + ";base64," + d.Content
		}
	}
	return rb.TrackingURL
}

func contentDescription(req models.ShipmentRequest) string {
	for _, p := range req.Packages {
		if p.Description != "" {
			return p.Description
		}
	}
	if req.Reference != "" {
		return "Order " + req.Reference
	}
	return "Merchandise"
}
