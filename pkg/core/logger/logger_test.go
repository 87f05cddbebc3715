package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitReplacesGlobal(t *testing.T) {
	first := Get()
	assert.NotNil(t, first)
	assert.Equal(t, first, Get())

	l := Init("debug")
	assert.NotNil(t, l)
	assert.Equal(t, l, Get())
}
