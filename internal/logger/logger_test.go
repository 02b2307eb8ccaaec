package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoWritesFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Cleanup()

	Info("Request processed", "method", "GET", "path", "/lndhub/ext/balance")

	out := buf.String()
	assert.Contains(t, out, "Request processed")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/lndhub/ext/balance")
}

func TestOddKeyvalsAreKept(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Cleanup()

	Error("dangling", "wallet")

	assert.Contains(t, buf.String(), `wallet="(missing)"`)
}
