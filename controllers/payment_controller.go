package controllers

import (
	"net/http"

	"github.com/Xebarter/Tina-s-Bakery-sub000/middleware"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentController receives the gateway's browser callback and its IPN pings.
type PaymentController struct {
	resolver services.PaymentResolver
	logger   *zap.Logger
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(resolver services.PaymentResolver, logger *zap.Logger) *PaymentController {
	return &PaymentController{resolver: resolver, logger: logger}
}

// Callback handles GET /payments/callback
func (pc *PaymentController) Callback(ctx *gin.Context) {
	var params models.CallbackParams
	if err := ctx.ShouldBindQuery(&params); err != nil {
		badRequest(ctx, err)
		return
	}

	res := pc.resolver.Resolve(ctx.Request.Context(), middleware.GetSessionID(ctx), params)
	ctx.JSON(resolutionStatus(res), res)
}

// IPN handles GET /payments/ipn. Orders are finalized by the callback, so the
// notification is only logged and acknowledged.
func (pc *PaymentController) IPN(ctx *gin.Context) {
	var params models.CallbackParams
	_ = ctx.ShouldBindQuery(&params)

	ack := models.IPNAcknowledgement{
		OrderNotificationType:  params.OrderNotificationType,
		OrderTrackingID:        params.OrderTrackingID,
		OrderMerchantReference: params.OrderMerchantReference,
		Status:                 200,
	}
	if params.OrderTrackingID == "" {
		pc.logger.Warn("IPN without tracking id", zap.String("query", ctx.Request.URL.RawQuery))
		ack.Status = 500
	} else {
		pc.logger.Info("IPN received",
			zap.String("order_tracking_id", params.OrderTrackingID),
			zap.String("merchant_reference", params.OrderMerchantReference),
			zap.String("notification_type", params.OrderNotificationType),
		)
	}
	ctx.JSON(http.StatusOK, ack)
}

func resolutionStatus(res *models.Resolution) int {
	if res.State != models.PaymentStateError {
		return http.StatusOK
	}
	switch services.ErrorKind(res.Kind) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindState:
		return http.StatusConflict
	case services.KindNetwork:
		return http.StatusServiceUnavailable
	case services.KindGateway:
		return http.StatusBadGateway
	case services.KindProcessing:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
