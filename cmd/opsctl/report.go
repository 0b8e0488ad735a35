package main

import (
	"io"
	"strconv"
	"time"

	"marketplace/internal/domain/model"

	"github.com/olekukonko/tablewriter"
)

func renderOrders(w io.Writer, orders []model.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "USER", "STATUS", "DELIVERY", "COURIER", "REFUND", "TOTAL", "CREATED")
	for _, o := range orders {
		courier := "-"
		if o.CourierID != nil {
			courier = strconv.FormatInt(*o.CourierID, 10)
		}
		if err := table.Append([]string{
			strconv.FormatInt(o.ID, 10),
			strconv.FormatInt(o.UserID, 10),
			string(o.Status),
			string(o.DeliveryStatus),
			courier,
			string(o.RefundStatus),
			strconv.FormatInt(o.TotalCents, 10),
			o.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderAuditLogs(w io.Writer, logs []model.AuditLog) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "ACTOR", "ACTION", "RESOURCE", "BEFORE", "AFTER", "AT")
	for _, l := range logs {
		resource := string(l.ResourceType) + "#" + strconv.FormatInt(l.ResourceID, 10)
		if err := table.Append([]string{
			strconv.FormatInt(l.ID, 10),
			strconv.FormatInt(l.ActorUserID, 10),
			string(l.Action),
			resource,
			l.BeforeJSON,
			l.AfterJSON,
			l.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
