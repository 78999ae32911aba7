package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/Emmaka9/secure-fl/pkg/core/participant/services"
)

func main() {
	coordinatorURL := flag.String("coordinator", "http://localhost:8080", "协调器地址")
	rounds := flag.Int("rounds", 1, "聚合轮数")
	minVal := flag.Float64("min", -10.0, "随机数据下界")
	maxVal := flag.Float64("max", 10.0, "随机数据上界")
	timeout := flag.Duration("timeout", 2*time.Minute, "每轮等待超时")
	flag.Parse()

	p := services.NewParticipant(*coordinatorURL)
	if err := p.Setup(); err != nil {
		fmt.Printf("参与方初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer p.Shutdown()

	for round := 1; round <= *rounds; round++ {
		fmt.Printf("\n=== 第%d轮聚合 ===\n", round)

		// 每轮生成新的随机私有向量
		data := make([]float64, p.DataSize())
		for i := range data {
			data[i] = *minVal + rand.Float64()*(*maxVal-*minVal)
		}

		start := time.Now()
		result, err := p.RunRound(data, *timeout)
		if err != nil {
			fmt.Printf("第%d轮聚合失败: %v\n", round, err)
			os.Exit(1)
		}
		fmt.Printf("第%d轮聚合完成，耗时 %v\n", round, time.Since(start))
		if len(result) > 0 {
			fmt.Printf("结果前几项: %v\n", result[:min(4, len(result))])
		}

		if round < *rounds {
			if err := p.NextRound(); err != nil {
				fmt.Printf("轮换交换密钥失败: %v\n", err)
				os.Exit(1)
			}
			// 由0号参与方统一触发轮次重置，留出时间让其他方取走结果
			if p.ID == 0 {
				time.Sleep(3 * time.Second)
				if err := p.CoordinatorClient.ResetRound(); err != nil {
					fmt.Printf("轮次重置失败: %v\n", err)
					os.Exit(1)
				}
			} else {
				time.Sleep(5 * time.Second)
			}
		}
	}

	fmt.Println("\n所有轮次完成")
}
