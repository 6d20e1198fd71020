// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// DocumentRouteHandler defines the routes every document kind exposes.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	GetByNumber(c *gin.Context)
	Delete(c *gin.Context)
	History(c *gin.Context)
}

// RegisterDocumentRoutes registers the standard routes for a document kind.
//
// Usage:
//
//	handler := handlers.NewDocumentHandler(base, service, numerator.KindInvoice)
//	RegisterDocumentRoutes(api.Group("/invoices"), handler)
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.GET("/number/:number", handler.GetByNumber)
	group.DELETE("/:id", handler.Delete)
	group.GET("/:id/history", handler.History)
}
