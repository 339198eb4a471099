package controllers

import (
	"net/http"

	"github.com/Xebarter/Tina-s-Bakery-sub000/middleware"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/gin-gonic/gin"
)

// CartController handles HTTP requests for the session cart.
type CartController struct {
	cartService services.CartService
}

// NewCartController creates a new CartController.
func NewCartController(svc services.CartService) *CartController {
	return &CartController{cartService: svc}
}

// GetCart handles GET /cart
func (cc *CartController) GetCart(ctx *gin.Context) {
	view, err := cc.cartService.GetCart(ctx.Request.Context(), middleware.GetSessionID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// AddItem handles POST /cart/items
func (cc *CartController) AddItem(ctx *gin.Context) {
	var req models.AddCartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	view, err := cc.cartService.AddProduct(ctx.Request.Context(), middleware.GetSessionID(ctx), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// AddCustomItem handles POST /cart/custom
func (cc *CartController) AddCustomItem(ctx *gin.Context) {
	var req models.AddCustomItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	view, err := cc.cartService.AddCustomItem(ctx.Request.Context(), middleware.GetSessionID(ctx), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// UpdateItem handles PUT /cart/items/:id
func (cc *CartController) UpdateItem(ctx *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	view, err := cc.cartService.UpdateQuantity(ctx.Request.Context(), middleware.GetSessionID(ctx), ctx.Param("id"), req.Quantity)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// RemoveItem handles DELETE /cart/items/:id
func (cc *CartController) RemoveItem(ctx *gin.Context) {
	view, err := cc.cartService.RemoveItem(ctx.Request.Context(), middleware.GetSessionID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// ClearCart handles DELETE /cart
func (cc *CartController) ClearCart(ctx *gin.Context) {
	if err := cc.cartService.Clear(ctx.Request.Context(), middleware.GetSessionID(ctx)); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
