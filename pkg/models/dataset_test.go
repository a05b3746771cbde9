package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRows_KeepsKeyOrder(t *testing.T) {
	raw := json.RawMessage(`[{"zeta": 1, "alpha": "a"}, {"alpha": "b", "mid": true, "zeta": 2}]`)

	columns, rows, err := DecodeRows(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["zeta"])
	assert.Equal(t, "b", rows[1]["alpha"])
	assert.Equal(t, true, rows[1]["mid"])
	_, present := rows[0]["mid"]
	assert.False(t, present)
}

func TestDecodeRows_ExactNumbers(t *testing.T) {
	raw := json.RawMessage(`[{"id": 9007199254740993, "big": 123456789012345678901234567890, "price": 2.5, "tags": [1, 2]}]`)

	_, rows, err := DecodeRows(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(9007199254740993), rows[0]["id"])
	assert.Equal(t, json.Number("123456789012345678901234567890"), rows[0]["big"])
	assert.Equal(t, 2.5, rows[0]["price"])
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, rows[0]["tags"])

	out, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 9007199254740993, "big": 123456789012345678901234567890, "price": 2.5, "tags": [1, 2]}`, string(out))
}

func TestDecodeRows_Malformed(t *testing.T) {
	for _, raw := range []string{`{"a": 1}`, `[1, 2]`, `["x"]`, `[null]`} {
		_, _, err := DecodeRows(json.RawMessage(raw))
		assert.Error(t, err, "input %s", raw)
	}
}

func TestDecodeRows_Empty(t *testing.T) {
	columns, rows, err := DecodeRows(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, columns)
	assert.Empty(t, rows)

	columns, rows, err = DecodeRows(nil)
	require.NoError(t, err)
	assert.Nil(t, columns)
	assert.Nil(t, rows)
}

func TestNewDataset_DerivesColumnsAndCopies(t *testing.T) {
	src := []Row{{"b": 1, "a": 2}, {"c": 3}}
	ds := NewDataset("t", nil, src)

	assert.Equal(t, []string{"a", "b", "c"}, ds.Columns)
	assert.Equal(t, 2, ds.RowCount())

	src[0]["a"] = 99
	assert.Equal(t, 2, ds.Value(0, "a"), "dataset must not alias caller rows")
	assert.Nil(t, ds.Value(1, "a"))
	assert.Equal(t, 2, ds.ColumnIndex("c"))
	assert.False(t, ds.HasColumn("missing"))
}

func TestKeyPair_UnmarshalFlexible(t *testing.T) {
	var kp KeyPair
	require.NoError(t, json.Unmarshal([]byte(`{"file1":"sales.csv","col1":2024,"file2":"plan.csv","col2":"2024"}`), &kp))
	assert.Equal(t, KeyPair{File1: "sales.csv", Col1: "2024", File2: "plan.csv", Col2: "2024"}, kp)
	assert.Equal(t, "sales.csv.2024 = plan.csv.2024", kp.String())
}

func TestMergedTable_Preview(t *testing.T) {
	tbl := &MergedTable{Rows: []Row{{"a": 1}, {"a": 2}, {"a": 3}}}
	assert.Len(t, tbl.Preview(2), 2)
	assert.Len(t, tbl.Preview(10), 3)
	assert.Len(t, tbl.Preview(-1), 3)
}
