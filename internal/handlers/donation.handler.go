package handlers

import (
	"context"
	"encoding/json"

	"github.com/fasthttp/router"
	"github.com/giveline/donation-ledger/internal/model"
	xhttp "github.com/giveline/donation-ledger/pkg/http"
)

type DonationService interface {
	Create(ctx context.Context, p model.DonationCreateRequest) (*model.Donation, error)
}

type DonationHandler struct {
	svc DonationService
}

func RegisterDonationRoutes(e *router.Group, h *DonationHandler) {
	e.POST("/donations", h.CreateDonation)
}

func NewDonationHandler(donationService DonationService) *DonationHandler {
	return &DonationHandler{
		svc: donationService,
	}
}

type createDonationRequest struct {
	CampaignID          string  `json:"campaign_id"`
	ConnectedAccountRef string  `json:"connected_account_ref"`
	PaymentIntentRef    string  `json:"payment_intent_ref"`
	GrossAmountCents    int64   `json:"gross_amount_cents"`
	DonorEmail          *string `json:"donor_email"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *DonationHandler) CreateDonation(ctx *xhttp.RequestCtx) {
	var req createDonationRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.DonationCreateRequest{
		CampaignID:          req.CampaignID,
		ConnectedAccountRef: req.ConnectedAccountRef,
		PaymentIntentRef:    req.PaymentIntentRef,
		GrossAmountCents:    req.GrossAmountCents,
		DonorEmail:          req.DonorEmail,
	}

	d, err := h.svc.Create(ctx, p)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, d)
}
