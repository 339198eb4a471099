package routes

import (
	"github.com/Xebarter/Tina-s-Bakery-sub000/controllers"
	"github.com/gin-gonic/gin"
)

// Controllers groups the HTTP handlers the router needs.
type Controllers struct {
	Cart     *controllers.CartController
	Checkout *controllers.CheckoutController
	Payment  *controllers.PaymentController
	Order    *controllers.OrderController
}

// RegisterRoutes sets up the storefront API. session issues the session
// cookie, identity reads the optional bearer token and checkoutLimit throttles
// payment submissions.
func RegisterRoutes(r *gin.Engine, c Controllers, session, identity, checkoutLimit gin.HandlerFunc) {
	// PesaPal calls the IPN URL server to server, without the browser cookie.
	r.GET("/payments/ipn", c.Payment.IPN)

	api := r.Group("/")
	api.Use(session, identity)

	cart := api.Group("/cart")
	cart.GET("", c.Cart.GetCart)
	cart.DELETE("", c.Cart.ClearCart)
	cart.POST("/items", c.Cart.AddItem)
	cart.PUT("/items/:id", c.Cart.UpdateItem)
	cart.DELETE("/items/:id", c.Cart.RemoveItem)
	cart.POST("/custom", c.Cart.AddCustomItem)

	checkout := api.Group("/checkout")
	checkout.Use(checkoutLimit)
	checkout.POST("", c.Checkout.Submit)
	checkout.POST("/retry", c.Checkout.Retry)

	api.GET("/payments/callback", c.Payment.Callback)
	api.GET("/orders/:id", c.Order.GetOrder)
}
