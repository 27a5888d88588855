package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/ledger"
)

func TestErrorRenderer(t *testing.T) {
	renderer := NewErrorRenderer("vestings.csv")

	t.Run("data error includes source location", func(t *testing.T) {
		err := ledger.NewDataError(12, "fmv_at_vesting", "unparseable FMV", fmt.Errorf("bad syntax"))

		rendered := renderer.Render(err)
		assert.Contains(t, rendered, "unparseable FMV")
		assert.Contains(t, rendered, "vestings.csv: row 12")
		assert.Contains(t, rendered, `"fmv_at_vesting"`)
		assert.Contains(t, rendered, "bad syntax")
	})

	t.Run("shortfall error includes the allocation numbers", func(t *testing.T) {
		sale := &ledger.Sale{
			SaleDate:   ledger.MustDate("2024-03-20"),
			SharesSold: decimal.NewFromInt(120),
		}
		err := ledger.NewShortfallError(sale, decimal.NewFromInt(100))

		rendered := renderer.Render(err)
		assert.Contains(t, rendered, "2024-03-20")
		assert.Contains(t, rendered, "allocated 100")
		assert.Contains(t, rendered, "unsatisfied 20")
	})

	t.Run("processing errors render each entry", func(t *testing.T) {
		err := &ledger.ProcessingErrors{Errors: []error{
			ledger.NewDataError(2, "vesting_date", "unparseable vesting date", nil),
			ledger.NewDataError(5, "shares_vested", "unparseable share count", nil),
		}}

		rendered := renderer.Render(err)
		assert.Contains(t, rendered, "row 2")
		assert.Contains(t, rendered, "row 5")
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		rendered := renderer.Render(fmt.Errorf("disk on fire"))
		assert.Contains(t, rendered, "disk on fire")
	})

	t.Run("render all separates errors", func(t *testing.T) {
		rendered := renderer.RenderAll([]error{
			fmt.Errorf("first"),
			fmt.Errorf("second"),
		})
		lines := strings.Split(rendered, "\n")
		assert.Equal(t, 2, len(lines))
	})

	t.Run("render all of nothing is empty", func(t *testing.T) {
		assert.Equal(t, "", renderer.RenderAll(nil))
	})
}
