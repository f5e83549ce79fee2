package conf

import (
	"fmt"

	"github.com/spf13/viper"
)

var (
	Net  string = ""
	Port string = ""

	// Chain Configuration
	ChainID               string = ""
	ChainName             string = ""
	ChainRPCURL           string = ""
	ChainWSURL            string = ""
	ChainBlockExplorerURL string = ""
	ChainCurrencyName     string = ""
	ChainCurrencySymbol   string = ""
	ChainCurrencyDecimals int    = 0

	// Contract Configuration
	ContractAddress             string = ""
	ContractGasLimit            int    = 0
	ContractConfirmations       int    = 0
	ContractReceiptPollInterval string = ""
	ContractReadMaxRetries      int    = 0

	// Wallet Configuration
	WalletMode          string = ""
	WalletPrivateKey    string = ""
	WalletBridgeURL     string = ""
	WalletBridgePath    string = ""
	WalletBridgeKey     string = ""
	WalletBridgeTimeout int    = 0

	// Event Subscription Configuration
	EventEnabled            bool   = false
	EventMaxRetries         int    = 0
	EventReconnectBaseDelay string = ""
	EventReconnectMaxDelay  string = ""

	// Local Store Configuration
	StoreEnabled bool   = false
	StoreDBPath  string = ""
)

const (
	WalletModeBridge = "bridge"
	WalletModeLocal  = "local"
	WalletModeNone   = "none"
)

func InitConfig(configPath string) {
	if configPath == "" {
		configPath = GetYaml()
	}
	fmt.Printf("configPath:%s\n", configPath)
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	load(viper.GetViper())
}

func load(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("contract.gas_limit", 300000)
	v.SetDefault("contract.receipt_poll_interval", "1s")
	v.SetDefault("contract.read_max_retries", 3)
	v.SetDefault("wallet.mode", WalletModeBridge)
	v.SetDefault("wallet.bridge.path", "/socket.io/")
	v.SetDefault("wallet.bridge.timeout", 10)
	v.SetDefault("event.enabled", true)
	v.SetDefault("event.max_retries", 10)
	v.SetDefault("event.reconnect_base_delay", "1s")
	v.SetDefault("event.reconnect_max_delay", "30s")
	v.SetDefault("store.db_path", "./data/wave_pebble")

	Net = v.GetString("net")
	Port = v.GetString("port")

	// 读取链配置
	ChainID = v.GetString("chain.chain_id")
	ChainName = v.GetString("chain.chain_name")
	ChainRPCURL = v.GetString("chain.rpc_url")
	ChainWSURL = v.GetString("chain.ws_url")
	ChainBlockExplorerURL = v.GetString("chain.block_explorer_url")
	ChainCurrencyName = v.GetString("chain.currency_name")
	ChainCurrencySymbol = v.GetString("chain.currency_symbol")
	ChainCurrencyDecimals = v.GetInt("chain.currency_decimals")

	// 读取合约配置
	ContractAddress = v.GetString("contract.address")
	ContractGasLimit = v.GetInt("contract.gas_limit")
	ContractConfirmations = v.GetInt("contract.confirmations")
	ContractReceiptPollInterval = v.GetString("contract.receipt_poll_interval")
	ContractReadMaxRetries = v.GetInt("contract.read_max_retries")

	// 读取钱包配置
	WalletMode = v.GetString("wallet.mode")
	WalletPrivateKey = v.GetString("wallet.private_key")
	WalletBridgeURL = v.GetString("wallet.bridge.server_url")
	WalletBridgePath = v.GetString("wallet.bridge.path")
	WalletBridgeKey = v.GetString("wallet.bridge.bridge_key")
	WalletBridgeTimeout = v.GetInt("wallet.bridge.timeout")

	// 读取事件订阅配置
	EventEnabled = v.GetBool("event.enabled")
	EventMaxRetries = v.GetInt("event.max_retries")
	EventReconnectBaseDelay = v.GetString("event.reconnect_base_delay")
	EventReconnectMaxDelay = v.GetString("event.reconnect_max_delay")

	// 读取本地缓存配置
	StoreEnabled = v.GetBool("store.enabled")
	StoreDBPath = v.GetString("store.db_path")
}
