package controllers

import (
	"net/http"

	"github.com/Xebarter/Tina-s-Bakery-sub000/middleware"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/gin-gonic/gin"
)

// CheckoutController starts and restarts gateway payments.
type CheckoutController struct {
	checkoutService services.CheckoutService
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(svc services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: svc}
}

// Submit handles POST /checkout
func (cc *CheckoutController) Submit(ctx *gin.Context) {
	var billing models.BillingInfo
	if err := ctx.ShouldBindJSON(&billing); err != nil {
		badRequest(ctx, err)
		return
	}

	res, err := cc.checkoutService.Submit(ctx.Request.Context(), middleware.GetSessionID(ctx), middleware.GetIdentity(ctx), billing)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, res)
}

// Retry handles POST /checkout/retry
func (cc *CheckoutController) Retry(ctx *gin.Context) {
	res, err := cc.checkoutService.Retry(ctx.Request.Context(), middleware.GetSessionID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, res)
}
