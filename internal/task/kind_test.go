package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindNone, KindGetConf, KindKillUID, KindGetUGid1, KindGetUGid2,
		KindChrootUID1, KindChrootUID2, KindMakeDev, KindMakeTTY,
		KindMakeConsole, KindMount, KindUmount,
	}

	for _, k := range kinds {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestCheckArity(t *testing.T) {
	assert.NoError(t, KindMount.CheckArity(2))
	assert.Error(t, KindMount.CheckArity(1))
	assert.Error(t, KindMount.CheckArity(3))

	assert.NoError(t, KindChrootUID1.CheckArity(2))
	assert.NoError(t, KindChrootUID1.CheckArity(5))
	assert.Error(t, KindChrootUID1.CheckArity(1))

	assert.NoError(t, KindGetConf.CheckArity(0))
	assert.Error(t, KindGetConf.CheckArity(1))
}

func TestParseKindUnknown(t *testing.T) {
	_, err := ParseKind("bogus")
	assert.Error(t, err)
}
