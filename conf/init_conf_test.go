package conf

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
chain:
  chain_id: "0xa86a"
  rpc_url: "https://api.avax.network/ext/bc/C/rpc"
contract:
  address: "0x83b751F54a56EFcB8bB54E69e40aC414080F5CDb"
`)))

	load(v)

	assert.Equal(t, "0xa86a", ChainID)
	assert.Equal(t, "0x83b751F54a56EFcB8bB54E69e40aC414080F5CDb", ContractAddress)
	assert.Equal(t, 300000, ContractGasLimit)
	assert.Equal(t, "1s", ContractReceiptPollInterval)
	assert.Equal(t, WalletModeBridge, WalletMode)
	assert.Equal(t, "/socket.io/", WalletBridgePath)
	assert.True(t, EventEnabled)
	assert.Equal(t, 10, EventMaxRetries)
	assert.Equal(t, "8080", Port)
}

func TestLoadReadsNestedKeys(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
port: "9090"
chain:
  currency_symbol: "AVAX"
  currency_decimals: 18
wallet:
  mode: "local"
  private_key: "abc"
  bridge:
    bridge_key: "k1"
event:
  enabled: false
store:
  enabled: true
  db_path: "/tmp/x"
`)))

	load(v)

	assert.Equal(t, "9090", Port)
	assert.Equal(t, "AVAX", ChainCurrencySymbol)
	assert.Equal(t, 18, ChainCurrencyDecimals)
	assert.Equal(t, WalletModeLocal, WalletMode)
	assert.Equal(t, "abc", WalletPrivateKey)
	assert.Equal(t, "k1", WalletBridgeKey)
	assert.False(t, EventEnabled)
	assert.True(t, StoreEnabled)
	assert.Equal(t, "/tmp/x", StoreDBPath)
}

func TestGetYaml(t *testing.T) {
	defer func(old EnvironmentEnum) { SystemEnvironmentEnum = old }(SystemEnvironmentEnum)

	SystemEnvironmentEnum = ParseEnvironment("mainnet")
	assert.Equal(t, "conf/conf_pro.yaml", GetYaml())
	SystemEnvironmentEnum = ParseEnvironment("testnet")
	assert.Equal(t, "conf/conf_test.yaml", GetYaml())
	SystemEnvironmentEnum = ParseEnvironment("whatever")
	assert.Equal(t, "conf/conf_example.yaml", GetYaml())
}
