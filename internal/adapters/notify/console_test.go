package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_NotifyWritesSubjectAndBody(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	err := c.Notify(context.Background(), "engine started", "tracking 3 symbols")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "engine started")
	assert.Contains(t, out, "tracking 3 symbols")
}
