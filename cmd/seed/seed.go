package main

import (
	"context"
	"fmt"
	"time"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
)

type demoOrder struct {
	order  models.Order
	status models.OrderStatus
}

func demoData() []demoOrder {
	return []demoOrder{
		{
			order: models.Order{
				SchoolID:      "65b0e6293e9f76a9694d84b4",
				TrusteeID:     "65b0e6293e9f76a9694d84b5",
				StudentInfo:   models.StudentInfo{Name: "John Doe", ID: "STU001", Email: "john@example.com"},
				GatewayName:   "PhonePe",
				CustomOrderID: "ORDER_001",
			},
			status: models.OrderStatus{
				OrderAmount:       2000,
				TransactionAmount: 2200,
				PaymentMode:       "upi",
				PaymentDetails:    "success@ybl",
				BankReference:     "YESBNK001",
				PaymentMessage:    "Payment successful",
				Status:            models.PaymentStatusSuccess,
				PaymentTime:       time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
			},
		},
		{
			order: models.Order{
				SchoolID:      "65b0e6293e9f76a9694d84b4",
				TrusteeID:     "65b0e6293e9f76a9694d84b6",
				StudentInfo:   models.StudentInfo{Name: "Jane Smith", ID: "STU002", Email: "jane@example.com"},
				GatewayName:   "Razorpay",
				CustomOrderID: "ORDER_002",
			},
			status: models.OrderStatus{
				OrderAmount:       1500,
				TransactionAmount: 1650,
				PaymentMode:       "card",
				PaymentDetails:    "VISA****1234",
				BankReference:     "HDFC001",
				PaymentMessage:    "Payment successful",
				Status:            models.PaymentStatusSuccess,
				PaymentTime:       time.Date(2025, 1, 15, 11, 45, 0, 0, time.UTC),
			},
		},
		{
			order: models.Order{
				SchoolID:      "65b0e6293e9f76a9694d84b7",
				TrusteeID:     "65b0e6293e9f76a9694d84b8",
				StudentInfo:   models.StudentInfo{Name: "Mike Johnson", ID: "STU003", Email: "mike@example.com"},
				GatewayName:   "PayU",
				CustomOrderID: "ORDER_003",
			},
			status: models.OrderStatus{
				OrderAmount:       3000,
				TransactionAmount: 0,
				PaymentMode:       "failed",
				PaymentDetails:    "Payment failed",
				BankReference:     "N/A",
				PaymentMessage:    "Payment failed",
				Status:            models.PaymentStatusFailed,
				ErrorMessage:      "Insufficient funds",
				PaymentTime:       time.Date(2025, 1, 15, 12, 15, 0, 0, time.UTC),
			},
		},
	}
}

var (
	extraSchools  = []string{"65b0e6293e9f76a9694d84b4", "65b0e6293e9f76a9694d84b5", "65b0e6293e9f76a9694d84b6", "65b0e6293e9f76a9694d84b7"}
	extraGateways = []string{"PhonePe", "Razorpay", "PayU"}
	extraModes    = []string{"upi", "card", "netbanking"}
)

// extraOrder generates the n-th additional demo order, numbered after the fixed ones.
func extraOrder(n int, base time.Time) demoOrder {
	seq := n + 4
	amount := float64(1000 + (n%8)*250)

	st := models.OrderStatus{
		OrderAmount:    amount,
		PaymentMode:    extraModes[n%len(extraModes)],
		BankReference:  fmt.Sprintf("BANK%03d", seq),
		PaymentTime:    base.Add(time.Duration(n) * 37 * time.Minute),
		PaymentDetails: "demo",
	}
	switch n % 5 {
	case 3:
		st.Status = models.PaymentStatusPending
		st.PaymentMessage = "Payment pending"
	case 4:
		st.Status = models.PaymentStatusFailed
		st.PaymentMessage = "Payment failed"
		st.ErrorMessage = "Transaction declined"
	default:
		st.Status = models.PaymentStatusSuccess
		st.TransactionAmount = amount + amount/10
		st.PaymentMessage = "Payment successful"
	}

	return demoOrder{
		order: models.Order{
			SchoolID:  extraSchools[n%len(extraSchools)],
			TrusteeID: fmt.Sprintf("65b0e6293e9f76a9694d8%03d", seq),
			StudentInfo: models.StudentInfo{
				Name:  fmt.Sprintf("Student %03d", seq),
				ID:    fmt.Sprintf("STU%03d", seq),
				Email: fmt.Sprintf("student%03d@example.com", seq),
			},
			GatewayName:   extraGateways[n%len(extraGateways)],
			CustomOrderID: fmt.Sprintf("ORDER_%03d", seq),
		},
		status: st,
	}
}

// Result summarizes what seed wrote.
type Result struct {
	Orders   int
	Statuses int
	APIKey   string
}

// seed writes the demo orders, extra generated orders and one API client.
func seed(ctx context.Context, repos *repository.Repositories, extra int, now time.Time) (*Result, error) {
	data := demoData()
	base := now.UTC().AddDate(0, 0, -30).Truncate(time.Hour)
	for i := 0; i < extra; i++ {
		data = append(data, extraOrder(i, base))
	}

	res := &Result{}
	for _, d := range data {
		order := d.order
		if err := repos.Order.Create(ctx, &order); err != nil {
			return res, fmt.Errorf("create order %s: %w", order.CustomOrderID, err)
		}
		res.Orders++

		status := d.status
		status.CollectID = order.ID
		if err := repos.OrderStatus.Create(ctx, &status); err != nil {
			return res, fmt.Errorf("create status for %s: %w", order.CustomOrderID, err)
		}
		res.Statuses++
	}

	client := &models.APIClient{Name: "demo dashboard"}
	key, err := client.IssueKey()
	if err != nil {
		return res, fmt.Errorf("issue api key: %w", err)
	}
	if err := repos.APIClient.Create(ctx, client); err != nil {
		return res, fmt.Errorf("create api client: %w", err)
	}
	res.APIKey = key
	return res, nil
}
