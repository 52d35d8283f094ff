package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionOrder(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to offering", OrderPending, OrderOffering, true},
		{"offering to assigned", OrderOffering, OrderAssigned, true},
		{"assigned to in_progress", OrderAssigned, OrderInProgress, true},
		{"in_progress to delivered", OrderInProgress, OrderDelivered, true},
		{"offering back to pending", OrderOffering, OrderPending, true},
		{"pending to cancelled", OrderPending, OrderCancelled, true},
		{"offering to cancelled", OrderOffering, OrderCancelled, true},
		{"assigned to cancelled", OrderAssigned, OrderCancelled, true},
		{"in_progress to cancelled", OrderInProgress, OrderCancelled, true},

		{"pending to assigned skips offering", OrderPending, OrderAssigned, false},
		{"assigned back to offering", OrderAssigned, OrderOffering, false},
		{"delivered to cancelled", OrderDelivered, OrderCancelled, false},
		{"cancelled to anything", OrderCancelled, OrderPending, false},
		{"delivered is terminal", OrderDelivered, OrderInProgress, false},
		{"pending to delivered", OrderPending, OrderDelivered, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanTransitionOrder(tc.from, tc.to))
		})
	}
}

func TestVehicleForWeight(t *testing.T) {
	require.Equal(t, VehicleMotorcycle, VehicleForWeight(0.2))
	require.Equal(t, VehicleMotorcycle, VehicleForWeight(5))
	require.Equal(t, VehicleCar, VehicleForWeight(5.01))
	require.Equal(t, VehicleCar, VehicleForWeight(50))
	require.Equal(t, VehicleVan, VehicleForWeight(51))
	require.Equal(t, VehicleVan, VehicleForWeight(200))
	require.Equal(t, VehicleTruck, VehicleForWeight(200.5))
}

func TestVehicleClass_AtLeast(t *testing.T) {
	require.True(t, VehicleTruck.AtLeast(VehicleMotorcycle))
	require.True(t, VehicleCar.AtLeast(VehicleCar))
	require.False(t, VehicleMotorcycle.AtLeast(VehicleCar))
	require.False(t, VehicleVan.AtLeast(VehicleTruck))
}

func TestStatus_Valid(t *testing.T) {
	require.True(t, CourierAvailable.Valid())
	require.False(t, CourierStatus("walking").Valid())

	require.True(t, VehicleVan.Valid())
	require.False(t, VehicleClass("bicycle").Valid())

	require.True(t, OrderOffering.Valid())
	require.False(t, OrderStatus("lost").Valid())
}

func TestValidatePhone(t *testing.T) {
	require.True(t, ValidatePhone("+79990000000"))
	require.True(t, ValidatePhone("+1234567"))
	require.False(t, ValidatePhone("79990000000"))
	require.False(t, ValidatePhone("+123456"))
	require.False(t, ValidatePhone("+7999000000000000"))
	require.False(t, ValidatePhone("+7999-000-00"))
	require.False(t, ValidatePhone(""))
}
