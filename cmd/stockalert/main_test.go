package main

import (
	"bytes"
	"testing"

	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrintLowStock(t *testing.T) {
	var buf bytes.Buffer
	printLowStock(&buf, []models.Product{
		{ID: "NM002", Name: "Bolt", Quantity: 3, LowQuantityAlert: 5},
		{ID: "NM003", Name: "Nut", Quantity: 0, LowQuantityAlert: 5},
	})

	out := buf.String()
	assert.Contains(t, out, "NM002")
	assert.Contains(t, out, "low")
	assert.Contains(t, out, "out of stock")

	buf.Reset()
	printLowStock(&buf, nil)
	assert.Contains(t, buf.String(), "above their restock threshold")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, sales.Summary{
		Today: sales.Period{Orders: 1, Revenue: decimal.RequireFromString("31.5"), Profit: decimal.RequireFromString("9.45")},
	})
	assert.Contains(t, buf.String(), "Today: 1 orders, revenue 31.50, profit 9.45")
}
