// Package email is the notification sink: it accepts order confirmation
// requests, renders them and hands the message to a Sender.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
	"github.com/joao-fontenele/marketplace-orderflow/internal/httpx"
)

// OrderConfirmation is the request body of POST /send.
type OrderConfirmation struct {
	To          string `json:"to"`
	OrderNo     string `json:"order_no"`
	ProductName string `json:"product_name"`
	ProductSize string `json:"product_size"`
	TotalPrice  int64  `json:"total_price"`
}

type Message struct {
	To      string
	Subject string
	Body    string
}

func (c OrderConfirmation) validate() error {
	if strings.TrimSpace(c.To) == "" {
		return apperr.Validation("to is required")
	}
	if strings.TrimSpace(c.OrderNo) == "" {
		return apperr.Validation("order_no is required")
	}
	return nil
}

// Render formats the confirmation. Prices arrive in pence.
func Render(c OrderConfirmation) Message {
	total := decimal.New(c.TotalPrice, -2).StringFixed(2)
	return Message{
		To:      c.To,
		Subject: "Order Confirmation: " + c.OrderNo,
		Body: fmt.Sprintf("Thanks for your order %s.\n\n%s, UK size %s\nTotal paid: £%s\n\nWe will email you again once it has shipped.",
			c.OrderNo, c.ProductName, c.ProductSize, total),
	}
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.logger.InfoContext(ctx, "email sent", "to", m.To, "subject", m.Subject, "body_length", len(m.Body))
	return nil
}

type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{sender: sender, logger: logger}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req OrderConfirmation
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.sender.Send(r.Context(), Render(req)); err != nil {
		httpx.WriteError(w, r, h.logger, fmt.Errorf("send email: %w", err))
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, sendResponse{Status: "sent"})
}
