package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
	"github.com/yashrajoria/giftshop-backend/controllers"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/services"
)

// Controllers groups every handler set the API exposes.
type Controllers struct {
	Products  *controllers.ProductController
	Carts     *controllers.CartController
	Shipping  *controllers.ShippingController
	Discounts *controllers.DiscountController
	Orders    *controllers.OrderController
	Payments  *controllers.PaymentController
	Inventory *controllers.InventoryController
}

// RegisterRoutes mounts the /api tree. checkoutLimit guards order creation and
// may be nil.
func RegisterRoutes(r *gin.Engine, c Controllers, checkoutLimit gin.HandlerFunc) {
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())

	api.GET("/products/:id", c.Products.GetProduct)

	cart := api.Group("/cart")
	cart.GET("", c.Carts.GetCart)
	cart.DELETE("", c.Carts.ClearCart)
	cart.POST("/items", c.Carts.AddItem)
	cart.PUT("/items/:productId", c.Carts.UpdateItem)
	cart.DELETE("/items/:productId", c.Carts.RemoveItem)

	api.POST("/shipping/estimate", c.Shipping.Estimate)
	api.POST("/checkout/preview", c.Shipping.Preview)

	discounts := api.Group("/discounts")
	discounts.POST("/validate", c.Discounts.Validate)
	discounts.GET("/available", c.Discounts.Available)
	discounts.POST("/quote", c.Discounts.Quote)

	orders := api.Group("/orders")
	if checkoutLimit != nil {
		orders.POST("", checkoutLimit, c.Orders.CreateOrder)
	} else {
		orders.POST("", c.Orders.CreateOrder)
	}
	orders.GET("/my", c.Orders.ListMyOrders)
	orders.GET("/:id", c.Orders.GetOrder)

	api.POST("/payments/:id/capture", c.Payments.Capture)

	// Admin-only routes
	admin := api.Group("/admin")
	admin.Use(middleware.AdminOnly())

	admin.POST("/products", c.Products.CreateProduct)
	admin.PUT("/products/:id", c.Products.UpdateProduct)

	admin.GET("/orders", c.Orders.AdminListOrders)
	admin.GET("/orders/:id", c.Orders.AdminGetOrder)
	for _, action := range []services.OrderAction{
		services.ActionConfirm, services.ActionFulfill, services.ActionCancel, services.ActionDeliver, services.ActionFail,
	} {
		admin.POST("/orders/:id/"+string(action), c.Orders.Transition(action))
	}

	admin.GET("/inventory", c.Inventory.ListInventory)
	admin.GET("/inventory/summary", c.Inventory.Summary)
	admin.GET("/inventory/:productId/history", c.Inventory.History)
	admin.PATCH("/inventory/:productId/threshold", c.Inventory.UpdateThreshold)
	for _, t := range []models.MovementType{
		models.MoveReceive, models.MoveIssue, models.MoveAdjust, models.MoveStocktake, models.MoveReserve, models.MoveRelease,
	} {
		admin.POST("/inventory/:productId/"+string(t), c.Inventory.Move(t))
	}

	admin.POST("/discounts", c.Discounts.CreateDiscount)
	admin.GET("/discounts", c.Discounts.ListDiscounts)
	admin.DELETE("/discounts/:code", c.Discounts.DeactivateDiscount)
}
