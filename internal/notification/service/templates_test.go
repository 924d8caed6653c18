package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestTemplates_EveryTypeRenders(t *testing.T) {
	o := testOrder(7, "499.5")
	v := newOrderView(o)

	for typ := range contents {
		var data interface{} = v
		switch typ {
		case domain.NotificationAdminBatch:
			data = batchView{Orders: []orderView{v, v}, Total: "999.00"}
		case domain.NotificationReportReady:
			data = reportView{ReportID: "r-1", Report: domain.NewReportMetrics()}
		}
		body, err := render(typ, data)
		require.NoError(t, err, typ)
		assert.Contains(t, body, "<html>", typ)
	}
}

func TestTemplates_EscapesUserInput(t *testing.T) {
	o := testOrder(1, "100")
	o.ShippingAddress.Name = `<script>alert("x")</script>`

	body, err := render(domain.NotificationOrderConfirmation, newOrderView(o))
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestTemplates_UnknownType(t *testing.T) {
	_, err := render(domain.NotificationType("nope"), nil)
	assert.Error(t, err)
}

func TestNewOrderView_FormatsMoney(t *testing.T) {
	v := newOrderView(testOrder(1, "499.5"))

	assert.Equal(t, "499.50", v.Total)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "499.50", v.Items[0].Subtotal)
}
