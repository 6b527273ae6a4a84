package recipient_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

func TestNewSet(t *testing.T) {
	t.Run("schema is union of columns", func(t *testing.T) {
		set := recipient.NewSet(
			recipient.NewRow([]string{"Email", "Name"}, []interface{}{"ann@example.com", "Ann"}),
			recipient.NewRow([]string{"Email", "City"}, []interface{}{"bob@example.com", "Bandung"}),
		)

		assert.Equal(t, []string{"Email", "Name", "City"}, set.Columns())
		assert.Equal(t, 2, set.Len())

		row, err := set.Row(1)
		require.NoError(t, err)

		v, ok := row.Get("Name")
		assert.True(t, ok)
		assert.Nil(t, v)
		assert.Equal(t, "", row.String("Name"))
		assert.Equal(t, "Bandung", row.String("City"))
	})

	t.Run("row out of range", func(t *testing.T) {
		set := recipient.NewSet()
		_, err := set.Row(0)
		assert.Error(t, err)
	})
}

func TestRow_Address(t *testing.T) {
	testCases := []struct {
		Name  string
		Value interface{}
		Want  string
		OK    bool
	}{
		{Name: "trimmed", Value: "  ann@example.com ", Want: "ann@example.com", OK: true},
		{Name: "null", Value: nil, OK: false},
		{Name: "blank", Value: "   ", OK: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			row := recipient.NewRow([]string{"Email"}, []interface{}{testCase.Value})
			addr, ok := row.Address("Email")
			assert.Equal(t, testCase.OK, ok)
			assert.Equal(t, testCase.Want, addr)
		})
	}

	t.Run("missing column", func(t *testing.T) {
		row := recipient.NewRow([]string{"Name"}, []interface{}{"Ann"})
		_, ok := row.Address("Email")
		assert.False(t, ok)
	})
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", recipient.Stringify(nil))
	assert.Equal(t, "42", recipient.Stringify(float64(42)))
	assert.Equal(t, "3.5", recipient.Stringify(3.5))
	assert.Equal(t, "7", recipient.Stringify(7))
	assert.Equal(t, "true", recipient.Stringify(true))
	assert.Equal(t, "text", recipient.Stringify("text"))
}

func TestIsPlausibleAddress(t *testing.T) {
	testCases := map[string]bool{
		"ann@example.com":     true,
		"a@b.c":               true,
		"weird+tag@sub.x.org": true,
		"no-at-sign.com":      false,
		"@example.com":        false,
		"ann@":                false,
		"ann@localhost":       false,
		"":                    false,
	}

	for addr, want := range testCases {
		t.Run(addr, func(t *testing.T) {
			assert.Equal(t, want, recipient.IsPlausibleAddress(addr))
		})
	}
}

func TestReadCSV(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		in := "Email,Name,Order\nann@example.com,Ann,12\nbob@example.com,,\n"
		set, err := recipient.ReadCSV(strings.NewReader(in))
		require.NoError(t, err)

		assert.Equal(t, []string{"Email", "Name", "Order"}, set.Columns())
		assert.Equal(t, 2, set.Len())

		row, err := set.Row(1)
		require.NoError(t, err)
		v, ok := row.Get("Name")
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("short record", func(t *testing.T) {
		in := "Email,Name\nann@example.com\n"
		set, err := recipient.ReadCSV(strings.NewReader(in))
		require.NoError(t, err)

		row, err := set.Row(0)
		require.NoError(t, err)
		assert.Equal(t, "", row.String("Name"))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := recipient.ReadCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, recipient.ErrNoHeader)
	})

	t.Run("header only keeps schema", func(t *testing.T) {
		set, err := recipient.ReadCSV(strings.NewReader("Email,Name\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, set.Len())
		assert.True(t, set.HasColumn("Name"))
	})

	t.Run("duplicate column", func(t *testing.T) {
		_, err := recipient.ReadCSV(strings.NewReader("Email,Email\n"))
		assert.Error(t, err)
	})

	t.Run("empty column name", func(t *testing.T) {
		_, err := recipient.ReadCSV(strings.NewReader("Email,\n"))
		assert.ErrorIs(t, err, recipient.ErrEmptyColumnName)
	})
}

func TestFromRecords(t *testing.T) {
	t.Run("ordered then extra", func(t *testing.T) {
		set, err := recipient.FromRecords([]string{"Email"}, []map[string]interface{}{
			{"Email": "ann@example.com", "Zip": float64(40115), "Active": true},
			{"Email": "bob@example.com", "Name": nil},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Email", "Active", "Name", "Zip"}, set.Columns())

		row, err := set.Row(0)
		require.NoError(t, err)
		assert.Equal(t, "40115", row.String("Zip"))
	})

	t.Run("nested value rejected", func(t *testing.T) {
		_, err := recipient.FromRecords(nil, []map[string]interface{}{
			{"Email": "ann@example.com", "Meta": map[string]interface{}{"a": 1}},
		})
		assert.Error(t, err)
	})
}
