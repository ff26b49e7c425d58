package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/addrprof/lib/block/types"
)

func TestCursor(t *testing.T) {
	assert.Equal(t, "", EncodeCursor(nil))

	p, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, p)

	in := types.PageParams{"block_number": float64(4681385), "index": float64(0), "hash": "0xabc"}
	s := EncodeCursor(in)
	assert.NotContains(t, s, "=")

	out, err := DecodeCursor(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	v := Query(nil, types.PageParams{
		"block_number": float64(4681385),
		"fee":          "12",
		"value":        nil,
		"is_name_null": false,
	})

	assert.Equal(t, "block_number=4681385&fee=12&is_name_null=false", v.Encode())
}
