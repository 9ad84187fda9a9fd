package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "j.id, j.user_id", prefixed("id, user_id", "j."))
	assert.Equal(t, "j.id, j.due", prefixed("id,\n\tdue", "j."))
}
