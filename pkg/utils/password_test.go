package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassword(t *testing.T) {
	h := HashPassword("root")
	assert.NotEqual(t, "root", h)
	assert.True(t, CheckPassword("root", h))
	assert.False(t, CheckPassword("toor", h))
	assert.False(t, CheckPassword("root", "not-a-hash"))
}
