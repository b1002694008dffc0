package dhl

import (
	"strings"

	"github.com/BearBump/ShipBox/internal/models"
)

var (
	economyProducts = map[string]bool{"W": true, "H": true}
	expressProducts = map[string]bool{"T": true, "Y": true, "K": true, "E": true, "X": true, "1": true, "8": true}
)

// serviceTypeForProduct maps a DHL global product code to our service level.
func serviceTypeForProduct(code string) models.ServiceType {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch {
	case economyProducts[code]:
		return models.ServiceTypeEconomy
	case expressProducts[code]:
		return models.ServiceTypeExpress
	default:
		return models.ServiceTypeStandard
	}
}

// productForService picks the product code used when booking a shipment.
// Domestic shipments always go as DHL Express Domestic (N).
func productForService(st models.ServiceType, domestic bool) string {
	if domestic {
		return "N"
	}
	switch st {
	case models.ServiceTypeEconomy:
		return "W"
	case models.ServiceTypeExpress:
		return "T"
	default:
		return "P"
	}
}

var eventStatuses = map[string]models.TrackingStatus{
	"PU": models.TrackingStatusPickedUp,

	"PL": models.TrackingStatusInTransit,
	"DF": models.TrackingStatusInTransit,
	"AF": models.TrackingStatusInTransit,
	"AR": models.TrackingStatusInTransit,
	"CR": models.TrackingStatusInTransit,
	"CD": models.TrackingStatusInTransit,
	"RR": models.TrackingStatusInTransit,
	"TR": models.TrackingStatusInTransit,
	"HI": models.TrackingStatusInTransit,

	"WC": models.TrackingStatusOutForDelivery,

	"OK": models.TrackingStatusDelivered,
	"DL": models.TrackingStatusDelivered,

	"CA": models.TrackingStatusException,
	"NH": models.TrackingStatusException,
	"BA": models.TrackingStatusException,
	"MS": models.TrackingStatusException,
	"RT": models.TrackingStatusException,
	"HP": models.TrackingStatusException,
	"OH": models.TrackingStatusException,
	"DS": models.TrackingStatusException,
	"SS": models.TrackingStatusException,
	"RD": models.TrackingStatusException,
}

// statusForEvent maps a checkpoint type code; unmapped codes are UNKNOWN.
func statusForEvent(code string) models.TrackingStatus {
	if st, ok := eventStatuses[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return st
	}
	return models.TrackingStatusUnknown
}
