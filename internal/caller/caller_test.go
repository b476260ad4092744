package caller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupRejectsLowUID(t *testing.T) {
	_, err := Lookup(0, 100)
	assert.Error(t, err)
}

func TestLookupRejectsLowGID(t *testing.T) {
	_, err := Lookup(100, 0)
	assert.Error(t, err)
}
