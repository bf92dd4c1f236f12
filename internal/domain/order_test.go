package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_Validate(t *testing.T) {
	require.NoError(t, Order{OrderType: Market, Quantity: 10}.Validate())
	require.ErrorIs(t, Order{OrderType: Market, Quantity: 0}.Validate(), ErrValidation)
	require.ErrorIs(t, Order{OrderType: Limit, Quantity: 10, Price: 0}.Validate(), ErrValidation)
	require.ErrorIs(t, Order{OrderType: Limit, Quantity: 10, Price: MaxOrderPrice + 1}.Validate(), ErrValidation)
	require.NoError(t, Order{OrderType: Limit, Quantity: 10, Price: MaxOrderPrice}.Validate())
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, Filled, DeriveStatus(10, 10, Submitted))
	assert.Equal(t, Filled, DeriveStatus(10, 12, Submitted))
	assert.Equal(t, PartialFilled, DeriveStatus(10, 4, Submitted))
	assert.Equal(t, Submitted, DeriveStatus(10, 0, Submitted))
}

func TestOrder_WithMBRNo(t *testing.T) {
	o := Order{Metadata: map[string]string{"client_id": "abc"}}
	o2 := o.WithMBRNo(VenueNXT)
	assert.Equal(t, VenueNXT, o2.MBRNo())
	assert.Equal(t, "abc", o2.ClientID())
	assert.Empty(t, o.MBRNo(), "original order must not be mutated")
}
