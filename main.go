package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	"wave-portal-client/conf"
	"wave-portal-client/controller"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service"
	"wave-portal-client/service/event_service"
	"wave-portal-client/service/pebble_service"
	"wave-portal-client/service/wallet_bridge_service"
	"wave-portal-client/service/wallet_service"
	"wave-portal-client/service/wave_center"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// initWallet 按配置选择钱包，返回 nil 表示只读模式
func initWallet() wallet_service.Provider {
	switch conf.WalletMode {
	case conf.WalletModeBridge:
		bridgeConfig := &wallet_bridge_service.Config{
			ServerURL: conf.WalletBridgeURL,
			BridgeKey: conf.WalletBridgeKey,
			Path:      getStringWithDefault(conf.WalletBridgePath, "/socket.io/"),
			Timeout:   getIntWithDefault(conf.WalletBridgeTimeout, 10),
		}
		log.Printf("🔗 Wallet bridge: %s (key %s)", bridgeConfig.ServerURL, bridgeConfig.BridgeKey)
		return wallet_bridge_service.NewProvider(bridgeConfig)

	case conf.WalletModeLocal:
		client, err := ethclient.Dial(conf.ChainRPCURL)
		if err != nil {
			log.Printf("⚠️ 本地钱包连接 RPC 失败，进入只读模式: %v", err)
			return nil
		}
		wallet, err := wallet_service.NewLocalWallet(conf.WalletPrivateKey, client)
		if err != nil {
			log.Printf("⚠️ 本地钱包初始化失败，进入只读模式: %v", err)
			return nil
		}
		return wallet

	default:
		log.Printf("📴 钱包未启用，只读模式")
		return nil
	}
}

func initWaveCenter() *wave_center.WaveCenter {
	log.Printf("🚀 开始初始化 wave 会话...")

	readRetry := chain_service.DefaultRetryPolicy()
	readRetry.MaxRetries = uint64(getIntWithDefault(conf.ContractReadMaxRetries, 3))

	eventRetry := chain_service.RetryPolicy{
		MaxRetries:   uint64(getIntWithDefault(conf.EventMaxRetries, 10)),
		InitialDelay: parseDuration(conf.EventReconnectBaseDelay, 1*time.Second),
		MaxDelay:     parseDuration(conf.EventReconnectMaxDelay, 30*time.Second),
	}

	config := &wave_center.Config{
		Network: models.NetworkDescriptor{
			ChainID:   conf.ChainID,
			ChainName: conf.ChainName,
			RPCURLs:   []string{conf.ChainRPCURL},
			NativeCurrency: models.NativeCurrency{
				Name:     conf.ChainCurrencyName,
				Symbol:   conf.ChainCurrencySymbol,
				Decimals: getIntWithDefault(conf.ChainCurrencyDecimals, 18),
			},
		},
		RPCURL: conf.ChainRPCURL,
		Writer: chain_service.WriterConfig{
			Contract:      common.HexToAddress(conf.ContractAddress),
			GasLimit:      uint64(getIntWithDefault(conf.ContractGasLimit, 300000)),
			Confirmations: uint64(conf.ContractConfirmations),
			PollInterval:  parseDuration(conf.ContractReceiptPollInterval, 1*time.Second),
			Reconnect:     readRetry,
		},
		ReadRetry:    readRetry,
		EventEnabled: conf.EventEnabled && conf.ChainWSURL != "",
		Event: event_service.Config{
			WSURL: conf.ChainWSURL,
			Retry: eventRetry,
		},
	}
	if conf.ChainBlockExplorerURL != "" {
		config.Network.BlockExplorerURLs = []string{conf.ChainBlockExplorerURL}
	}
	if conf.StoreEnabled {
		config.PebbleConfig = &pebble_service.Config{
			DBPath: getStringWithDefault(conf.StoreDBPath, pebble_service.DefaultConfig().DBPath),
		}
	}

	center := wave_center.NewWaveCenter(config, initWallet())
	if err := center.Initialize(); err != nil {
		log.Fatalf("❌ 初始化 wave 会话失败: %v", err)
	}
	if err := center.Run(context.Background()); err != nil {
		log.Fatalf("❌ 启动 wave 会话失败: %v", err)
	}

	log.Printf("✅ wave 会话已启动")
	log.Printf("🔗 RPC: %s", conf.ChainRPCURL)
	log.Printf("📜 合约: %s", conf.ContractAddress)
	return center
}

// 辅助函数：解析时间间隔字符串
func parseDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		log.Printf("⚠️ 解析时间间隔失败 '%s'，使用默认值: %v", durationStr, defaultDuration)
		return defaultDuration
	}
	return duration
}

// 辅助函数：获取字符串配置值，提供默认值
func getStringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// 辅助函数：获取整数配置值，提供默认值
func getIntWithDefault(value, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}

// Package main
// @title Wave Portal 客户端 API
// @version 1.0
// @description Wave Portal 留言合约客户端会话：钱包连接、网络校验、留言读取与发送
// @BasePath /
func main() {
	var env string
	flag.StringVar(&env, "env", "mainnet", "env config: testnet, mainnet, local")
	flag.Parse()

	conf.SystemEnvironmentEnum = conf.ParseEnvironment(env)
	conf.InitConfig("")

	fmt.Printf("run wave-portal-client, env: %s, net: %s\n", env, conf.Net)

	center := initWaveCenter()

	go func() {
		if err := controller.Run(center); err != nil {
			log.Fatalf("❌ HTTP 服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := center.Stop(); err != nil {
		log.Printf("⚠️ 关闭 wave 会话时出现错误: %v", err)
	}
}
