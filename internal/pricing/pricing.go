// Package pricing computes the fee breakdown a buyer is charged for a
// listing and converts between major and minor currency units.
package pricing

import "github.com/shopspring/decimal"

const (
	Currency = "GBP"

	DeliveryMethod = "Express Service"
	DeliveryPrice  = 799

	ProcessingFeeDescription = "3%"
)

var processingFeeRate = decimal.NewFromInt(3).Div(decimal.NewFromInt(100))

// Breakdown is the full set of amounts, in minor units, charged for a
// single listing.
type Breakdown struct {
	ProductPrice             int64  `json:"product_price"`
	DeliveryMethod           string `json:"delivery_method"`
	DeliveryPrice            int64  `json:"delivery_price"`
	ProcessingFee            int64  `json:"processing_fee"`
	ProcessingFeeDescription string `json:"processing_fee_description"`
	SellerFee                int64  `json:"seller_fee"`
	TotalPrice               int64  `json:"total_price"`
}

// Calculate returns the breakdown for a product price in minor units.
func Calculate(productPrice int64) Breakdown {
	fee := ProcessingFee(productPrice)

	return Breakdown{
		ProductPrice:             productPrice,
		DeliveryMethod:           DeliveryMethod,
		DeliveryPrice:            DeliveryPrice,
		ProcessingFee:            fee,
		ProcessingFeeDescription: ProcessingFeeDescription,
		SellerFee:                fee,
		TotalPrice:               productPrice + DeliveryPrice + fee,
	}
}

// ProcessingFee is 3% of the product price rounded to the nearest minor
// unit, never less than one.
func ProcessingFee(productPrice int64) int64 {
	fee := decimal.NewFromInt(productPrice).Mul(processingFeeRate).Round(0).IntPart()
	if fee < 1 {
		return 1
	}
	return fee
}

// SellerPayout is what remains for the seller once both fees are taken out
// of the total. The seller fee is paid out of the seller's share, never
// charged to the buyer.
func (b Breakdown) SellerPayout() int64 {
	return b.TotalPrice - b.ProcessingFee - b.SellerFee
}
