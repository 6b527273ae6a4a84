package recipient_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

func workbook(t *testing.T, rows map[string][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for cell, values := range rows {
		values := values
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSX(t *testing.T) {
	t.Run("first sheet with blank rows dropped", func(t *testing.T) {
		buf := workbook(t, map[string][]interface{}{
			"A1": {"Email", "Name", "Points"},
			"A2": {"ann@example.com", "Ann", 120},
			"A4": {"bob@example.com"},
		})

		set, err := recipient.ReadXLSX(buf)
		require.NoError(t, err)

		assert.Equal(t, []string{"Email", "Name", "Points"}, set.Columns())
		require.Equal(t, 2, set.Len())

		ann, err := set.Row(0)
		require.NoError(t, err)
		assert.Equal(t, "Ann", ann.String("Name"))
		assert.Equal(t, "120", ann.String("Points"))

		bob, err := set.Row(1)
		require.NoError(t, err)
		address, ok := bob.Address(recipient.DefaultAddressColumn)
		assert.True(t, ok)
		assert.Equal(t, "bob@example.com", address)

		v, _ := bob.Get("Name")
		assert.Nil(t, v)
	})

	t.Run("empty workbook", func(t *testing.T) {
		_, err := recipient.ReadXLSX(workbook(t, nil))
		assert.ErrorIs(t, err, recipient.ErrNoHeader)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := recipient.ReadXLSX(strings.NewReader("Email\nann@example.com\n"))
		assert.Error(t, err)
	})
}

func TestRead(t *testing.T) {
	xlsx := workbook(t, map[string][]interface{}{
		"A1": {"Email"},
		"A2": {"ann@example.com"},
	})

	testCases := []struct {
		Name    string
		File    string
		Content *bytes.Reader
		Len     int
		Err     error
	}{
		{Name: "csv", File: "list.csv", Content: bytes.NewReader([]byte("Email\nann@example.com\n")), Len: 1},
		{Name: "upper case xlsx", File: "LIST.XLSX", Content: bytes.NewReader(xlsx.Bytes()), Len: 1},
		{Name: "legacy xls", File: "list.xls", Content: bytes.NewReader(nil), Err: recipient.ErrUnsupportedFormat},
		{Name: "json", File: "list.json", Content: bytes.NewReader(nil), Err: recipient.ErrUnsupportedFormat},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			set, err := recipient.Read(testCase.File, testCase.Content)
			if testCase.Err != nil {
				assert.ErrorIs(t, err, testCase.Err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.Len, set.Len())
		})
	}
}
