package server

import (
	"fmt"

	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
	"github.com/gin-gonic/gin"
)

// HTTPServer 协调器HTTP服务器，封装gin路由引擎和监听端口
type HTTPServer struct {
	Router *gin.Engine
	Port   string
}

// NewHTTPServer 创建新的HTTP服务器
func NewHTTPServer(port string) *HTTPServer {
	return &HTTPServer{
		Router: gin.Default(),
		Port:   port,
	}
}

// Start 启动HTTP服务器（阻塞）
// 本机IP只在启动横幅里用，失败不影响监听
func (hs *HTTPServer) Start() error {
	if ip, err := utils.GetLocalIP(); err == nil {
		fmt.Printf("本机IP: %s\n", ip)
		fmt.Printf("状态页面: http://%s:%s/status\n", ip, hs.Port)
		fmt.Printf("实时状态流: ws://%s:%s/status/ws\n", ip, hs.Port)
	}
	fmt.Printf("监听地址: 0.0.0.0:%s，等待参与方连接...\n\n", hs.Port)

	return hs.Router.Run(":" + hs.Port)
}

// GetRouter 获取路由器，用于注册API路由
func (hs *HTTPServer) GetRouter() *gin.Engine {
	return hs.Router
}
