package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOHLC_DefaultsValueFromVolumeTimesClose(t *testing.T) {
	b := NewOHLC("005930", time.Now(), 100, 110, 90, 105, 1000, 0)
	assert.Equal(t, 1000*105.0, b.Value)
}

func TestOHLC_Validate(t *testing.T) {
	cases := []struct {
		name string
		bar  OHLC
		ok   bool
	}{
		{"valid", OHLC{Open: 100, High: 110, Low: 90, Close: 105, Volume: 1}, true},
		{"high below close", OHLC{Open: 100, High: 104, Low: 90, Close: 105, Volume: 1}, false},
		{"low above open", OHLC{Open: 100, High: 110, Low: 101, Close: 105, Volume: 1}, false},
		{"negative price", OHLC{Open: -1, High: 110, Low: 90, Close: 105}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bar.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrDataIntegrity)
			}
		})
	}
}
