package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRowsFirstRowOrderWins(t *testing.T) {
	rows, order, err := decodeRows([]byte(`[{"b":1,"a":"x"},{"a":"y","c":true}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, order)
	require.Len(t, rows, 2)
	assert.Equal(t, true, rows[1]["c"])
}

func TestDecodeRowsNullAndEmpty(t *testing.T) {
	for _, in := range []string{"", "null", "  ", "[]"} {
		rows, order, err := decodeRows([]byte(in))
		require.NoError(t, err, in)
		assert.Empty(t, rows)
		assert.Empty(t, order)
	}
}

func TestDecodeRowsMalformed(t *testing.T) {
	for _, in := range []string{`{"a":1}`, `[1]`, `[{"a":1}`} {
		_, _, err := decodeRows([]byte(in))
		assert.ErrorIs(t, err, errMalformed, in)
	}
}

func TestDecodeUploadRequiresData(t *testing.T) {
	schema, err := compileUploadSchema()
	require.NoError(t, err)
	_, err = decodeUpload(schema, []byte(`{"message":"no data"}`))
	assert.Error(t, err)

	res, err := decodeUpload(schema, []byte(`{"data":[]}`))
	require.NoError(t, err)
	assert.True(t, res.Dataset.Empty())
}
