package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVExporterFormatsValues(t *testing.T) {
	var buf bytes.Buffer
	e := NewCSVExporter(&buf, DefaultCSVOptions())
	at := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	require.NoError(t, e.WriteHeader([]string{"project", "amount", "claimed", "claimed_at"}))
	require.NoError(t, e.WriteHeader([]string{"ignored"}))
	require.NoError(t, e.WriteRows([][]interface{}{
		{"Cocoa, Ashanti", decimal.NewFromInt(250), true, &at},
		{"Maize", decimal.NewFromInt(25), false, (*time.Time)(nil)},
	}))
	require.NoError(t, e.Flush())

	assert.Equal(t, "project,amount,claimed,claimed_at\n"+
		"\"Cocoa, Ashanti\",250,true,2026-04-02T10:30:00Z\n"+
		"Maize,25,false,\n", buf.String())
}

func TestExcelExporterWritesWorkbook(t *testing.T) {
	e, err := NewExcelExporter(DefaultExcelOptions())
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.WriteHeader([]string{"project", "amount", "pledged_at"}))
	require.NoError(t, e.WriteRows([][]interface{}{
		{"Cocoa", decimal.RequireFromString("123456789012345678901234567890"), time.Now()},
	}))

	var buf bytes.Buffer
	_, err = e.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Statement", "B2")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", v)
	header, err := f.GetCellValue("Statement", "A1")
	require.NoError(t, err)
	assert.Equal(t, "project", header)
}
