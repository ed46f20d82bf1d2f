package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	current := "aaa111"

	t.Run("never succeeded means process", func(t *testing.T) {
		assert.True(t, decide(nil, current))
	})

	t.Run("same checksum means skip", func(t *testing.T) {
		stored := "aaa111"
		assert.False(t, decide(&stored, current))
	})

	t.Run("changed checksum means reprocess", func(t *testing.T) {
		stored := "bbb222"
		assert.True(t, decide(&stored, current))
	})
}
