package api

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/distriplus/backend/internal/domain/order"
)

const (
	ordersSheet = "Pedidos"
	itemsSheet  = "Detalle"
	totalsSheet = "Totales"
)

var orderHeaders = []string{
	"Factura", "Fecha", "Cliente", "CUIT", "Condicion IVA",
	"Subtotal", "Total", "Aumento (%)", "Descuento (%)", "Precio sugerido (%)",
}

var itemHeaders = []string{
	"Factura", "Producto", "Marca", "Cantidad", "Precio unitario", "Precio sugerido",
}

var totalHeaders = []string{"Producto", "Marca", "Cantidad", "Importe"}

// exportOrders renders the orders of the requested window as an xlsx
// workbook with three sheets: orders, line detail, and per-product totals.
func (h *Handler) exportOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exported, err := h.orders.Export(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	f, err := renderWorkbook(exported)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	defer f.Close() //nolint:errcheck

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="pedidos.xlsx"`)
	if err := f.Write(w); err != nil {
		h.lg.Error("writing export workbook", zap.Error(err))
	}
}

type productTotal struct {
	name   string
	brand  string
	qty    int
	amount decimal.Decimal
}

func renderWorkbook(orders []order.ExportOrder) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	for _, sheet := range []string{itemsSheet, totalsSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("creating sheet %s: %w", sheet, err)
		}
	}

	writeHeaders(f, ordersSheet, orderHeaders)
	writeHeaders(f, itemsSheet, itemHeaders)
	writeHeaders(f, totalsSheet, totalHeaders)

	totals := make(map[string]*productTotal)
	totalOrder := make([]string, 0)
	itemRow := 2

	for i, o := range orders {
		setRow(f, ordersSheet, i+2,
			o.InvoiceNumber,
			o.CreatedAt.Format("2006-01-02 15:04"),
			o.ClientName,
			o.ClientCUIT,
			o.ClientIvaCondition,
			o.SubTotal.InexactFloat64(),
			o.TotalAmount.InexactFloat64(),
			pctCell(o.IncreasePct),
			pctCell(o.DiscountPct),
			pctCell(o.SuggestedPriceRate),
		)

		for _, item := range o.Items {
			setRow(f, itemsSheet, itemRow,
				o.InvoiceNumber,
				item.ProductName,
				item.Brand,
				item.Quantity,
				item.UnitPrice.InexactFloat64(),
				pctCell(item.SuggestedPrice),
			)
			itemRow++

			key := item.ProductName + "\x00" + item.Brand
			t, ok := totals[key]
			if !ok {
				t = &productTotal{name: item.ProductName, brand: item.Brand}
				totals[key] = t
				totalOrder = append(totalOrder, key)
			}
			t.qty += item.Quantity
			t.amount = t.amount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	for i, key := range totalOrder {
		t := totals[key]
		setRow(f, totalsSheet, i+2, t.name, t.brand, t.qty, t.amount.InexactFloat64())
	}

	return f, nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	setRow(f, sheet, 1, toAnySlice(headers)...)
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// pctCell renders an optional decimal, empty when absent.
func pctCell(d *decimal.Decimal) any {
	if d == nil {
		return ""
	}
	return d.InexactFloat64()
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
