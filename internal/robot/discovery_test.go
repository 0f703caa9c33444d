package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlidFromHostname(t *testing.T) {
	assert.Equal(t, "3117850851637850", blidFromHostname("Roomba-3117850851637850"))
	assert.Equal(t, "3117850851637850", blidFromHostname("iRobot-3117850851637850"))
	assert.Equal(t, "", blidFromHostname("toaster"))
	assert.Equal(t, "", blidFromHostname(""))
}
