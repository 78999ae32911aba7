package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Emmaka9/secure-fl/pkg/core/aggregator"
	"github.com/Emmaka9/secure-fl/pkg/core/coordinator/utils"
	"github.com/Emmaka9/secure-fl/pkg/core/mkckks"
	"github.com/Emmaka9/secure-fl/pkg/core/participant/services"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// runTimed 执行并返回耗时
func runTimed(f func() error) (time.Duration, error) {
	start := time.Now()
	err := f()
	return time.Since(start), err
}

// shareWireSize 一个份额经gob序列化后的字节数（通信成本核算）
func shareWireSize(share mkckks.ClientShare) (int, error) {
	c0Bytes, err := utils.EncodeShare(share.C0)
	if err != nil {
		return 0, err
	}
	dBytes, err := utils.EncodeShare(share.DMasked)
	if err != nil {
		return 0, err
	}
	return len(c0Bytes) + len(dBytes), nil
}

func main() {
	numClients := flag.Int("numclients", 3, "客户端数量")
	dataSize := flag.Int("datasize", 128, "聚合向量长度")
	rounds := flag.Int("rounds", 1, "聚合轮数")
	minVal := flag.Float64("min", -10.0, "随机数据下界")
	maxVal := flag.Float64("max", 10.0, "随机数据上界")
	csvPath := flag.String("csv", "", "CSV结果输出路径（为空则不输出）")
	flag.Parse()

	if *numClients <= 0 || *dataSize <= 0 || *rounds <= 0 {
		fmt.Println("参数有误: numclients、datasize、rounds必须为正数")
		os.Exit(1)
	}

	fmt.Printf("=== 安全聚合本地演示 ===\n")
	fmt.Printf("客户端数量: %d，向量长度: %d，轮数: %d\n", *numClients, *dataSize, *rounds)

	cs, err := mkckks.NewCryptoSystem(mkckks.DefaultParametersLiteral())
	if err != nil {
		fmt.Printf("密码系统初始化失败: %v\n", err)
		os.Exit(1)
	}
	if *dataSize > cs.MaxSlots() {
		fmt.Printf("向量长度超限: %d > %d\n", *dataSize, cs.MaxSlots())
		os.Exit(1)
	}

	crs := cs.GenCommonRefPoly()

	// 创建客户端并生成同态/交换密钥对
	clients := make([]*services.Client, *numClients)
	keygenTime, err := runTimed(func() error {
		for i := range clients {
			c, err := services.NewClient(i, cs, crs)
			if err != nil {
				return err
			}
			clients[i] = c
		}
		return nil
	})
	if err != nil {
		fmt.Printf("客户端创建失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("密钥生成完成，耗时 %v\n", keygenTime)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	var csvWriter *csv.Writer
	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			fmt.Printf("CSV文件创建失败: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		csvWriter = csv.NewWriter(f)
		defer csvWriter.Flush()
		csvWriter.Write([]string{
			"round", "num_clients", "data_size",
			"keygen_ms", "share_ms", "aggregate_ms",
			"exchange_key_bytes", "share_bytes", "total_comm_bytes",
			"max_error", "mean_error",
		})
	}

	agg := aggregator.NewAggregator(cs)

	for round := 1; round <= *rounds; round++ {
		fmt.Printf("\n=== 第%d轮聚合 ===\n", round)

		// 本地交换公钥目录
		peerKeys := make(map[int][]byte, *numClients)
		for _, c := range clients {
			peerKeys[c.ID] = c.ExchangePublicKey()
		}

		for _, c := range clients {
			c.GenerateData(*dataSize, *minVal, *maxVal)
		}

		// 各客户端并发生成份额
		type shareResult struct {
			id    int
			share mkckks.ClientShare
			err   error
		}
		results := make(chan shareResult, *numClients)
		var wg sync.WaitGroup

		shareTime, _ := runTimed(func() error {
			for _, c := range clients {
				wg.Add(1)
				go func(c *services.Client) {
					defer wg.Done()
					share, err := c.PrepareShare(peerKeys)
					results <- shareResult{id: c.ID, share: share, err: err}
				}(c)
			}
			wg.Wait()
			close(results)
			return nil
		})

		shareBytes := 0
		for r := range results {
			if r.err != nil {
				fmt.Printf("客户端%d份额生成失败: %v\n", r.id, r.err)
				os.Exit(1)
			}
			if shareBytes == 0 {
				if shareBytes, err = shareWireSize(r.share); err != nil {
					fmt.Printf("份额序列化失败: %v\n", err)
					os.Exit(1)
				}
			}
			if err := agg.CollectShare(r.id, r.share); err != nil {
				fmt.Printf("份额收集失败: %v\n", err)
				os.Exit(1)
			}
		}
		// 每方的通信量：一个交换公钥 + 一个份额；各方大小相同
		exchangeKeyBytes := len(clients[0].ExchangePublicKey())
		totalCommBytes := *numClients * (exchangeKeyBytes + shareBytes)
		fmt.Printf("份额生成与收集完成，耗时 %v\n", shareTime)
		fmt.Printf("通信量: 交换公钥 %d 字节/方，份额 %d 字节/方，合计 %d 字节\n",
			exchangeKeyBytes, shareBytes, totalCommBytes)

		var result []float64
		aggTime, err := runTimed(func() error {
			var err error
			result, err = agg.GetResult(*dataSize)
			return err
		})
		if err != nil {
			fmt.Printf("聚合失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("聚合与解码完成，耗时 %v\n", aggTime)

		// 与明文逐元素求和比对
		expected := make([]float64, *dataSize)
		for _, c := range clients {
			floats.Add(expected, c.Data())
		}
		errs := make([]float64, *dataSize)
		for i := range errs {
			errs[i] = math.Abs(result[i] - expected[i])
		}
		maxErr := floats.Max(errs)
		meanErr := stat.Mean(errs, nil)
		fmt.Printf("最大误差: %.3e，平均误差: %.3e\n", maxErr, meanErr)
		if maxErr > 1e-3 {
			fmt.Printf("误差超出容限 1e-3，聚合结果不可用\n")
			os.Exit(1)
		}

		if csvWriter != nil {
			csvWriter.Write([]string{
				strconv.Itoa(round),
				strconv.Itoa(*numClients),
				strconv.Itoa(*dataSize),
				strconv.FormatInt(keygenTime.Milliseconds(), 10),
				strconv.FormatInt(shareTime.Milliseconds(), 10),
				strconv.FormatInt(aggTime.Milliseconds(), 10),
				strconv.Itoa(exchangeKeyBytes),
				strconv.Itoa(shareBytes),
				strconv.Itoa(totalCommBytes),
				strconv.FormatFloat(maxErr, 'e', 6, 64),
				strconv.FormatFloat(meanErr, 'e', 6, 64),
			})
		}

		// 下一轮：重置聚合器并轮换交换密钥
		if round < *rounds {
			agg.Reset()
			for _, c := range clients {
				if err := c.ResetRound(); err != nil {
					fmt.Printf("客户端%d轮换失败: %v\n", c.ID, err)
					os.Exit(1)
				}
			}
		}
	}

	fmt.Println("\n所有轮次完成")
}
