package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"wave-portal-client/controller/respond"
	"wave-portal-client/models"
	"wave-portal-client/service/chain_service"
	"wave-portal-client/service/chain_service/chaintest"
	"wave-portal-client/service/wallet_service"
	"wave-portal-client/service/wave_center"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = common.HexToAddress("0x1111111111111111111111111111111111111111")

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, chain *chaintest.Chain, provider wallet_service.Provider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	retry := chain_service.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	center := wave_center.NewWaveCenter(&wave_center.Config{
		Network: models.NetworkDescriptor{ChainID: "0xa86a", ChainName: "Avalanche Network"},
		RPCURL:  "memory",
		Writer: chain_service.WriterConfig{
			Contract:     chaintest.ContractAddress,
			GasLimit:     300000,
			PollInterval: 5 * time.Millisecond,
			Reconnect:    retry,
		},
		ReadRetry: retry,
		Dial:      chain.Dial,
	}, provider)
	require.NoError(t, center.Initialize())
	require.NoError(t, center.Run(context.Background()))
	t.Cleanup(func() { center.Stop() })
	return NewRouter(center)
}

func do(t *testing.T, router *gin.Engine, method, path, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestGetStateNewestFirst(t *testing.T) {
	chain := chaintest.NewChain()
	chain.Seed(alice, "first", time.Unix(1650000000, 0))
	chain.Seed(alice, "second", time.Unix(1650000100, 0))
	router := newTestRouter(t, chain, nil)

	env := do(t, router, http.MethodGet, "/v1/wave/state", "")
	require.Equal(t, respond.HttpsCodeSuccess, env.Code)

	var state respond.WaveState
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, uint64(2), state.TotalCount)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "second", state.Messages[0].Text)
	assert.False(t, state.WalletPresent)
	assert.Equal(t, "idle", state.WriteState)

	env = do(t, router, http.MethodGet, "/v1/wave/state?limit=1", "")
	require.NoError(t, json.Unmarshal(env.Data, &state))
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "second", state.Messages[0].Text)
}

func TestSendWithoutWallet(t *testing.T) {
	chain := chaintest.NewChain()
	router := newTestRouter(t, chain, nil)

	env := do(t, router, http.MethodPost, "/v1/wave/draft", `{"text":"hello"}`)
	require.Equal(t, respond.HttpsCodeSuccess, env.Code)

	env = do(t, router, http.MethodPost, "/v1/wave/send", "")
	assert.Equal(t, respond.HttpsCodeEnvironmentMissing, env.Code)
	assert.Equal(t, 0, chain.TotalWaves())
}

func TestConnectDraftSend(t *testing.T) {
	chain := chaintest.NewChain()
	wallet := chaintest.NewWallet(chain, alice, "0xa86a")
	router := newTestRouter(t, chain, wallet)

	env := do(t, router, http.MethodPost, "/v1/wave/connect", "")
	require.Equal(t, respond.HttpsCodeSuccess, env.Code, env.Message)
	var state respond.WaveState
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, alice.Hex(), state.Account)

	do(t, router, http.MethodPost, "/v1/wave/draft", `{"text":"hello"}`)
	env = do(t, router, http.MethodPost, "/v1/wave/send", "")
	require.Equal(t, respond.HttpsCodeSuccess, env.Code, env.Message)

	var outcome models.WriteOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	assert.Equal(t, models.WriteStateConfirmed, outcome.State)
	assert.Equal(t, uint64(1), outcome.TotalCountAfter)

	env = do(t, router, http.MethodGet, "/v1/wave/state", "")
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Empty(t, state.Draft)
	assert.Equal(t, "confirmed", state.WriteState)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Text)
}

func TestDraftRejectsBadBody(t *testing.T) {
	router := newTestRouter(t, chaintest.NewChain(), nil)
	env := do(t, router, http.MethodPost, "/v1/wave/draft", `{"text":`)
	assert.Equal(t, respond.HttpsCodeError, env.Code)
}

func TestRefreshReportsRpcUnavailable(t *testing.T) {
	chain := chaintest.NewChain()
	router := newTestRouter(t, chain, nil)

	chain.FailCalls = 1000
	env := do(t, router, http.MethodPost, "/v1/wave/refresh", "")
	assert.Equal(t, respond.HttpsCodeRpcUnavailable, env.Code)
}
