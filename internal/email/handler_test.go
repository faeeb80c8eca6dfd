package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, m Message) error {
	s.sent = append(s.sent, m)
	return s.err
}

func TestRender(t *testing.T) {
	m := Render(OrderConfirmation{
		To:          "memberA@test.com",
		OrderNo:     "TSM-1",
		ProductName: "Shoe",
		ProductSize: "1.5",
		TotalPrice:  1828,
	})

	assert.Equal(t, "memberA@test.com", m.To)
	assert.Equal(t, "Order Confirmation: TSM-1", m.Subject)
	assert.Contains(t, m.Body, "Shoe, UK size 1.5")
	assert.Contains(t, m.Body, "£18.28")
}

func TestHandleSend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		senderErr  error
		wantStatus int
		wantSent   int
	}{
		{"sends confirmation", `{"to":"memberA@test.com","order_no":"TSM-1","total_price":1828}`, nil, http.StatusOK, 1},
		{"missing recipient", `{"order_no":"TSM-1"}`, nil, http.StatusBadRequest, 0},
		{"missing order number", `{"to":"memberA@test.com"}`, nil, http.StatusBadRequest, 0},
		{"malformed body", `{"to":`, nil, http.StatusBadRequest, 0},
		{"sender failure", `{"to":"memberA@test.com","order_no":"TSM-1"}`, errors.New("smtp down"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{err: tt.senderErr}
			h := NewHandler(sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

			rec := httptest.NewRecorder()
			h.HandleSend(rec, httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			require.Len(t, sender.sent, tt.wantSent)
		})
	}
}
