package dhl

import (
	"testing"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatusForEvent(t *testing.T) {
	cases := map[string]models.TrackingStatus{
		"PU": models.TrackingStatusPickedUp,
		"df": models.TrackingStatusInTransit,
		"HI": models.TrackingStatusInTransit,
		"WC": models.TrackingStatusOutForDelivery,
		"OK": models.TrackingStatusDelivered,
		"DL": models.TrackingStatusDelivered,
		"RT": models.TrackingStatusException,
		"RD": models.TrackingStatusException,
		"ZZ": models.TrackingStatusUnknown,
		"":   models.TrackingStatusUnknown,
	}
	for code, want := range cases {
		require.Equal(t, want, statusForEvent(code), code)
	}
}

func TestServiceTypeForProduct(t *testing.T) {
	require.Equal(t, models.ServiceTypeEconomy, serviceTypeForProduct("W"))
	require.Equal(t, models.ServiceTypeEconomy, serviceTypeForProduct("h"))
	for _, code := range []string{"T", "Y", "K", "E", "X", "1", "8"} {
		require.Equal(t, models.ServiceTypeExpress, serviceTypeForProduct(code), code)
	}
	require.Equal(t, models.ServiceTypeStandard, serviceTypeForProduct("P"))
	require.Equal(t, models.ServiceTypeStandard, serviceTypeForProduct("N"))
}

func TestProductForService(t *testing.T) {
	require.Equal(t, "N", productForService(models.ServiceTypeExpress, true))
	require.Equal(t, "W", productForService(models.ServiceTypeEconomy, false))
	require.Equal(t, "T", productForService(models.ServiceTypeExpress, false))
	require.Equal(t, "P", productForService(models.ServiceTypeStandard, false))
	require.Equal(t, "P", productForService("", false))
}
