package marketstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_SessionEndSentinel(t *testing.T) {
	tr := New()
	tr.Update(1, "21")
	assert.True(t, tr.IsActive("KRX"))

	tr.Update(1, "41")
	assert.False(t, tr.IsActive("KRX"))
	assert.True(t, tr.IsSessionEnd("KRX"))
}

func TestTracker_CircuitBreakerToggle(t *testing.T) {
	tr := New()
	tr.Update(1, "61")
	assert.True(t, tr.IsCircuitBreakerActive("KRX"))
	tr.Update(1, "62")
	assert.False(t, tr.IsCircuitBreakerActive("KRX"))
}

func TestTracker_Jangubun6OnlyTouchesNXT(t *testing.T) {
	tr := New()
	tr.Update(1, "21")
	tr.Update(6, "61")
	assert.True(t, tr.IsActive("KRX"))
	assert.False(t, tr.IsCircuitBreakerActive("KRX"))
	assert.True(t, tr.IsCircuitBreakerActive("NXT"))
}

func TestTracker_CheckAndLatchSessionEndFiresOnce(t *testing.T) {
	tr := New()
	tr.Update(1, "21")
	tr.Update(1, "41")
	assert.True(t, tr.CheckAndLatchSessionEnd("KRX"))
	assert.False(t, tr.CheckAndLatchSessionEnd("KRX"), "must fire exactly once per transition")
}
