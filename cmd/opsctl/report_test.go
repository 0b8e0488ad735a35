package main

import (
	"bytes"
	"testing"
	"time"

	"marketplace/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOrders(t *testing.T) {
	courier := int64(7)
	var buf bytes.Buffer

	err := renderOrders(&buf, []model.Order{
		{ID: 1, UserID: 2, Status: model.OrderStatusPaid, DeliveryStatus: model.DeliveryStatusOnWay, CourierID: &courier, RefundStatus: model.RefundStatusNone, TotalCents: 1500, CreatedAt: time.Now()},
		{ID: 3, UserID: 4, Status: model.OrderStatusDisputed, DeliveryStatus: model.DeliveryStatusPending, RefundStatus: model.RefundStatusMediation, TotalCents: 900, CreatedAt: time.Now()},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ON_WAY")
	assert.Contains(t, out, "MEDIATION")
	assert.Contains(t, out, "1500")
}

func TestRenderAuditLogs(t *testing.T) {
	var buf bytes.Buffer

	err := renderAuditLogs(&buf, []model.AuditLog{
		{ID: 1, ActorUserID: 9, Action: model.AuditActionCloseClaim, ResourceType: model.AuditResourceOrder, ResourceID: 42, CreatedAt: time.Now()},
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "CLOSE_CLAIM")
	assert.Contains(t, buf.String(), "order#42")
}
