package handler

import (
	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Register 注册 /api/v1 下的全部路由，auth 为登录校验中间件
func (h *Handlers) Register(v1 *gin.RouterGroup, auth gin.HandlerFunc) {
	// 认证 (无需登录)
	v1.POST("/auth/login", h.Auth.Login)

	// SSE / WebSocket 支持 query param token
	v1.GET("/sse/events", auth, h.SSE.Stream)
	v1.GET("/ws", auth, h.SSE.WebSocket)

	// 目录维护与批量回填仅限管理员
	adminOnly := middleware.RequireRole(entity.RoleAdmin)

	api := v1.Group("", auth)
	{
		authed := api.Group("/auth")
		{
			authed.POST("/logout", h.Auth.Logout)
			authed.GET("/me", h.Auth.Me)
		}

		cases := api.Group("/cases")
		{
			cases.GET("", h.Case.List)
			cases.POST("", h.Case.Create)
			cases.GET("/:id", h.Case.Get)
			cases.PUT("/:id", h.Case.Update)
			cases.DELETE("/:id", h.Case.Delete)
			cases.PUT("/:id/status", h.Case.SetStatus)
			cases.POST("/:id/advance", h.Case.Advance)
			cases.POST("/:id/formalize", h.Case.Formalize)
			cases.GET("/:id/quotation", h.Case.Quotation)
			cases.POST("/:id/geocode", h.Case.RefreshLocation)

			// 施工区域
			cases.POST("/:id/zones", h.Case.AddZone)
			cases.PUT("/:id/zones/:zoneId", h.Case.UpdateZone)
			cases.DELETE("/:id/zones/:zoneId", h.Case.DeleteZone)
			cases.POST("/:id/zones/:zoneId/items", h.Case.AddItem)
			cases.PUT("/:id/zones/:zoneId/items/:itemId", h.Case.UpdateItem)
			cases.DELETE("/:id/zones/:zoneId/items/:itemId", h.Case.DeleteItem)

			// 排程与日志
			cases.POST("/:id/schedule", h.Case.GenerateSchedule)
			cases.PUT("/:id/schedule/:taskId", h.Case.UpdateTask)
			cases.POST("/:id/logs", h.Case.SaveLog)
			cases.POST("/:id/logs/sync", h.Case.SyncLogs)
			cases.PUT("/:id/logs/:logId", h.Case.SaveLog)
			cases.DELETE("/:id/logs/:logId", h.Case.DeleteLog)

			// 备料与文件
			cases.GET("/:id/materials", h.Export.Materials)
			cases.GET("/:id/materials/export", h.Export.ExportMaterials)
			cases.GET("/:id/documents/:kind", h.Export.Document)
		}

		catalog := api.Group("/catalog")
		{
			catalog.GET("/methods", h.Catalog.ListMethods)
			catalog.POST("/methods", adminOnly, h.Catalog.CreateMethod)
			catalog.GET("/methods/:id", h.Catalog.GetMethod)
			catalog.GET("/methods/:id/estimate", h.Catalog.QuickEstimate)
			catalog.PUT("/methods/:id", adminOnly, h.Catalog.UpdateMethod)
			catalog.DELETE("/methods/:id", adminOnly, h.Catalog.DeleteMethod)

			catalog.GET("/materials", h.Catalog.ListMaterials)
			catalog.POST("/materials", adminOnly, h.Catalog.CreateMaterial)
			catalog.PUT("/materials/:id", adminOnly, h.Catalog.UpdateMaterial)
			catalog.DELETE("/materials/:id", adminOnly, h.Catalog.DeleteMaterial)

			catalog.GET("/recipes", h.Catalog.ListRecipes)
			catalog.POST("/recipes", adminOnly, h.Catalog.CreateRecipe)
			catalog.POST("/recipes/import", adminOnly, h.Catalog.ImportRecipes)
			catalog.PUT("/recipes/:id", adminOnly, h.Catalog.UpdateRecipe)
			catalog.DELETE("/recipes/:id", adminOnly, h.Catalog.DeleteRecipe)
		}

		api.GET("/map/markers", h.Map.Markers)
		api.POST("/map/backfill", adminOnly, h.Map.Backfill)

		api.POST("/uploads", h.Upload.Upload)
		api.GET("/files/*object", h.Upload.Serve)

		api.GET("/analytics/overview", h.Analytics.Overview)
		api.GET("/analytics/today", h.Analytics.Today)
	}
}
