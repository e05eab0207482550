package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	})

	Log(Fields{Service: "order-service", OrderID: 12, Step: "validate_order", Status: "Delivered"})

	var got map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	assert.Equal(t, "order-service", got["service"])
	assert.Equal(t, float64(12), got["order_id"])
	assert.Equal(t, "validate_order", got["step"])
	assert.NotEmpty(t, got["timestamp"])
	assert.NotContains(t, got, "service_id")
}
