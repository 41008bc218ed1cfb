package pdf

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	gen := NewGenerator(opts)

	rows := make([][]string, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, []string{fmt.Sprintf("project-%d", i), "1000", "funding"})
	}

	out, err := gen.Render(context.Background(), Document{
		Title:    "Investor statement",
		Subtitle: "0xabc",
		Summary:  [][2]string{{"Total invested", "12000"}},
		Columns:  []string{"Project", "Amount", "Status"},
		Rows:     rows,
	})
	require.NoError(t, err)

	data, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderWithoutTable(t *testing.T) {
	gen := NewGenerator(Options{PageSize: "A4", FontFamily: "Arial", FontSize: 9, TitleFontSize: 14, Margin: 10})

	out, err := gen.Render(context.Background(), Document{Title: "Empty"})
	require.NoError(t, err)

	data, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
