package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNewExecutionID(t *testing.T) {
	a := NewExecutionID()
	b := NewExecutionID()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
