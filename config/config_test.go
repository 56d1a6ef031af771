package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripChannelID(t *testing.T) {
	assert.EqualValues(t, 1234567890, stripChannelID(-1001234567890))
	assert.EqualValues(t, 1234567890, stripChannelID(1234567890))
	// Legacy supergroup IDs without the -100 prefix.
	assert.EqualValues(t, 987654, stripChannelID(-987654))
}

func TestSizeAndDurationCaps(t *testing.T) {
	c := &config{MaxFileSizeMB: 500, MaxVideoDurationHrs: 2}
	assert.EqualValues(t, 500*1024*1024, c.MaxFileSize())
	assert.EqualValues(t, 7200, c.MaxVideoDuration())
}
