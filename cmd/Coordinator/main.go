package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/services"
)

func main() {
	n := flag.Int("n", 3, "期望参与方数量")
	dataSize := flag.Int("datasize", 128, "聚合向量长度")
	port := flag.String("port", "8080", "HTTP监听端口")
	flag.Parse()

	if *n <= 0 || *dataSize <= 0 {
		fmt.Println("参数有误: n和datasize必须为正数")
		os.Exit(1)
	}

	coordinator, err := services.NewCoordinator(*n, *dataSize, *port)
	if err != nil {
		fmt.Printf("协调器创建失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("协调器启动，监听端口 %s，等待 %d 个参与方连接...\n", *port, *n)
	fmt.Printf("聚合向量长度: %d，轮次: %s\n", *dataSize, coordinator.RoundID())

	if err := coordinator.Start(); err != nil {
		fmt.Printf("协调器运行失败: %v\n", err)
		os.Exit(1)
	}
}
