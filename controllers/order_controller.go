package controllers

import (
	"net/http"

	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/gin-gonic/gin"
)

// OrderController serves confirmed orders.
type OrderController struct {
	orderService services.OrderService
}

// NewOrderController creates a new OrderController.
func NewOrderController(svc services.OrderService) *OrderController {
	return &OrderController{orderService: svc}
}

// GetOrder handles GET /orders/:id
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	order, err := oc.orderService.GetOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}
