package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/payment"
	"github.com/luminapay/schoolpay/internal/pkg/transactions"
)

// PaymentCreator starts a payment for a student.
type PaymentCreator interface {
	Create(ctx context.Context, in payment.CreateInput) (*payment.CreateResult, error)
}

// TransactionQuerier answers the read-side payment queries.
type TransactionQuerier interface {
	List(ctx context.Context, q transactions.Query) (*transactions.Page, error)
	ListBySchool(ctx context.Context, schoolID string, page, limit int) (*transactions.Page, error)
	GetStatus(ctx context.Context, customOrderID string) (*transactions.StatusView, error)
	Stats(ctx context.Context) (*transactions.Stats, error)
}

// PaymentController serves /payment.
type PaymentController struct {
	payments     PaymentCreator
	transactions TransactionQuerier
}

// NewPaymentController creates the payment controller.
func NewPaymentController(payments PaymentCreator, transactions TransactionQuerier) *PaymentController {
	return &PaymentController{payments: payments, transactions: transactions}
}

// HandleCreatePayment creates an order and returns the gateway payment URL.
func (pc *PaymentController) HandleCreatePayment(c *fiber.Ctx) error {
	var in payment.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	res, err := pc.payments.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// HandleListTransactions returns all transactions, paged and sorted.
func (pc *PaymentController) HandleListTransactions(c *fiber.Ctx) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	res, err := pc.transactions.List(c.UserContext(), transactions.Query{
		Page:   page,
		Limit:  limit,
		SortBy: c.Query("sortBy"),
		Order:  c.Query("order"),
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleListSchoolTransactions returns the transactions of one school.
func (pc *PaymentController) HandleListSchoolTransactions(c *fiber.Ctx) error {
	schoolID := c.Params("schoolId")
	if schoolID == "" {
		return apperr.Validation("schoolId is required")
	}

	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	res, err := pc.transactions.ListBySchool(c.UserContext(), schoolID, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleTransactionStatus returns the latest status of one order.
func (pc *PaymentController) HandleTransactionStatus(c *fiber.Ctx) error {
	view, err := pc.transactions.GetStatus(c.UserContext(), c.Params("customOrderId"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// HandleTransactionStats returns dashboard totals.
func (pc *PaymentController) HandleTransactionStats(c *fiber.Ctx) error {
	stats, err := pc.transactions.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
