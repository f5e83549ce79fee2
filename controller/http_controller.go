package controller

import (
	"fmt"
	"log"
	"net/http"
	"time"
	"wave-portal-client/conf"
	"wave-portal-client/service/wave_center"

	_ "wave-portal-client/docs" // 导入生成的 swagger 文档

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func Run(center *wave_center.WaveCenter) error {
	router := NewRouter(center)
	return router.Run(fmt.Sprintf("0.0.0.0:%s", conf.Port))
}

// NewRouter 注册展示层路由
func NewRouter(center *wave_center.WaveCenter) *gin.Engine {
	router := gin.Default()
	router.Use(Cors())
	router.Use(Logger())

	// Swagger 文档路由
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	wave := NewWaveController(center)
	v1 := router.Group("/v1")
	{
		waveGroup := v1.Group("/wave")
		{
			waveGroup.GET("/state", wave.GetState)
			waveGroup.POST("/connect", wave.Connect)
			waveGroup.POST("/draft", wave.UpdateDraft)
			waveGroup.POST("/send", wave.SendDraft)
			waveGroup.POST("/refresh", wave.Refresh)
		}
	}
	return router
}

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Set("content-type", "application/json")
		if method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
		}
		c.Next()
	}
}

// Logger 慢请求（发送会阻塞到交易确认）单独记录
func Logger() gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		if cost := time.Since(start); cost > 5*time.Second {
			log.Printf("🐢 %s %s took %v", context.Request.Method, context.Request.URL.Path, cost)
		}
	}
}
