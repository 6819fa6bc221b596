package breaker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterAdminRoutes 注册熔断器管理接口
//
// 路由:
//
//	GET  /breakers             所有服务的状态快照
//	GET  /breakers/:name       单个服务的状态快照（未注册返回 404）
//	POST /breakers/:name/reset 手动复位
//
// 不包含鉴权，访问控制由部署层负责（通常挂在内部管理端口下）。
func RegisterAdminRoutes(r gin.IRouter, reg Registry) {
	r.GET("/breakers", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.Snapshots(c.Request.Context()))
	})

	r.GET("/breakers/:name", func(c *gin.Context) {
		name := c.Param("name")
		brk, ok := reg.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "breaker not found", "service": name})
			return
		}

		rec, err := brk.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "service": name})
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": name, "record": rec})
	})

	r.POST("/breakers/:name/reset", func(c *gin.Context) {
		name := c.Param("name")
		brk, ok := reg.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "breaker not found", "service": name})
			return
		}

		if err := brk.Reset(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "service": name})
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": name, "state": StateClosed.String()})
	})
}
