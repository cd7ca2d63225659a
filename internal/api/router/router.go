package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/notifyhub/dispatcher/internal/api/handlers/notification"
	"github.com/notifyhub/dispatcher/internal/api/handlers/settings"
)

func New(notifHandler *notification.Handler, settingsHandler *settings.Handler) *ginext.Engine {
	e := ginext.New("")
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api")

	notifications := api.Group("/notifications")
	notifications.POST("/", notifHandler.Create)
	notifications.GET("/", notifHandler.GetAll)
	notifications.GET("/:id", notifHandler.GetStatus)
	notifications.GET("/:id/attempts", notifHandler.GetAttempts)
	notifications.DELETE("/:id", notifHandler.Cancel)

	users := api.Group("/users")
	users.GET("/:id/settings", settingsHandler.Get)
	users.PUT("/:id/settings", settingsHandler.Update)

	return e
}
