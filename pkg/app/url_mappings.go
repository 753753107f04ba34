package app

import (
	"github.com/osvaldoandrade/flowdb/internal/controllers"
	"github.com/osvaldoandrade/flowdb/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", controllers.NewHealthController(app.Store).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := app.Engine.Group("/v1/flowdb")
	{
		v1.GET("/flows", controllers.NewListFlowsController(app.Flows).Handle)
		v1.GET("/flows/completed", controllers.NewCompletedFlowsController(app.Flows).Handle)
		v1.GET("/flows/:id", controllers.NewGetFlowController(app.Flows).Handle)
		v1.GET("/flows/:id/works/:index", controllers.NewGetWorkController(app.Flows).Handle)
		v1.GET("/flows/:id/files/:slot", controllers.NewGetFileController(app.Flows).Handle)
		v1.GET("/flows/:id/structure", controllers.NewGetStructureController(app.Flows).Handle)

		admin := v1.Group("", middleware.AdminAuthMiddleware(app.AdminValidator))
		admin.DELETE("/flows/:id", controllers.NewDeleteFlowController(app.Flows).Handle)
	}
}
