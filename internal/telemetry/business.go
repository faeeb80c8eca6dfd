package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_checkout_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"result"},
	)

	reservationOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_reservation_operations_total",
			Help: "Reservation operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	stockPushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_stock_push_total",
			Help: "Stock availability pushes to the catalog by outcome",
		},
		[]string{"result"},
	)
)

// RecordCheckout counts one checkout attempt. result is one of
// "authorised", "refused" or "error".
func RecordCheckout(result string) {
	checkoutTotal.WithLabelValues(result).Inc()
}

func RecordReservationOperation(operation string, err error) {
	reservationOperations.WithLabelValues(operation, outcome(err)).Inc()
}

func RecordStockPush(err error) {
	stockPushTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
