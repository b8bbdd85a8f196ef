package negotiation

import (
	"math"

	"visionmatch/internal/models"
)

const (
	PlatformFeeRate = 0.10
	GSTRate         = 0.18

	// FallbackBasePrice is used when a request carries no usable price at all.
	FallbackBasePrice int64 = 25000
)

// Pricing is the breakdown charged to the client for a base offer amount.
type Pricing struct {
	Base        int64 `json:"base"`
	PlatformFee int64 `json:"platformFee"`
	Subtotal    int64 `json:"subtotal"`
	GST         int64 `json:"gst"`
	Total       int64 `json:"total"`
}

// ComputePricing applies the platform fee and then GST on base plus fee.
// Rounding matches the web client's Math.round.
func ComputePricing(base int64) Pricing {
	if base < 0 {
		base = 0
	}
	fee := jsRound(float64(base) * PlatformFeeRate)
	subtotal := base + fee
	gst := jsRound(float64(subtotal) * GSTRate)
	return Pricing{
		Base:        base,
		PlatformFee: fee,
		Subtotal:    subtotal,
		GST:         gst,
		Total:       subtotal + gst,
	}
}

func jsRound(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// BasePrice picks the amount pricing is computed from:
// finalOffer > currentOffer > package price > budget > creator starting price > fallback.
func BasePrice(req *models.ProjectRequest) int64 {
	if req == nil {
		return FallbackBasePrice
	}
	if req.FinalOffer != nil && req.FinalOffer.Price > 0 {
		return req.FinalOffer.Price
	}
	if req.CurrentOffer != nil && req.CurrentOffer.Price > 0 {
		return req.CurrentOffer.Price
	}
	if req.Package != nil {
		if p, ok := ParsePrice(string(req.Package.Price)); ok && p > 0 {
			return p
		}
	}
	if p, ok := ParsePrice(req.Budget); ok && p > 0 {
		return p
	}
	if req.CreatorStartingPrice != nil && *req.CreatorStartingPrice > 0 {
		return *req.CreatorStartingPrice
	}
	return FallbackBasePrice
}

// AgreedDeliverables returns the deliverables a booking is created with.
func AgreedDeliverables(req *models.ProjectRequest) string {
	switch {
	case req.FinalOffer != nil && req.FinalOffer.Deliverables != "":
		return req.FinalOffer.Deliverables
	case req.CurrentOffer != nil && req.CurrentOffer.Deliverables != "":
		return req.CurrentOffer.Deliverables
	case req.Package != nil && req.Package.Name != "":
		return req.Package.Name
	}
	return "As discussed"
}
