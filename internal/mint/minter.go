// Package mint fires the per-request token-mint side effect. Minting is
// best effort by contract: any failure (unconfigured RPC, network error,
// revert) degrades to the zero placeholder hash and is reported in the
// Result, never as an error that could fail the chat response.
package mint

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ZeroTxHash is the placeholder transaction identifier returned when the
// mint degraded.
const ZeroTxHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// mintGasLimit bounds the mint call; a plain ERC-20 mint stays well under.
const mintGasLimit = 120_000

// mintABIJSON is the fragment of the token contract the gateway calls.
const mintABIJSON = `[{"name":"mint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}]`

var errNotConfigured = errors.New("minter not configured")

// Result is the typed outcome of a mint attempt. Degraded distinguishes
// "mint failed but the request continues" from a real transaction hash, so
// operators can count failures without parsing log text.
type Result struct {
	TxHash   string
	Degraded bool
	Err      error
}

// Minter submits mint(address,uint256) transactions over JSON-RPC.
type Minter struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	from     common.Address
	contract common.Address
	chainID  *big.Int
	amount   *big.Int
	abi      abi.ABI
	enabled  bool
}

// Disabled returns a minter that always degrades. Used when no RPC endpoint
// or signing key is configured.
func Disabled() *Minter {
	return &Minter{}
}

// NewMinter dials the RPC endpoint and prepares the signing key. Missing
// configuration yields a disabled minter rather than an error: the gateway
// must come up without chain access.
func NewMinter(rpcURL, privateKeyHex, contractAddr string, chainID int64, amountWei string) *Minter {
	if rpcURL == "" || privateKeyHex == "" || contractAddr == "" {
		return Disabled()
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		// Dial failures surface later as degraded mints.
		return Disabled()
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return Disabled()
	}

	parsed, err := abi.JSON(strings.NewReader(mintABIJSON))
	if err != nil {
		return Disabled()
	}

	amount, ok := new(big.Int).SetString(amountWei, 10)
	if !ok || amount.Sign() <= 0 {
		amount = big.NewInt(1)
	}

	return &Minter{
		client:   client,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(contractAddr),
		chainID:  big.NewInt(chainID),
		amount:   amount,
		abi:      parsed,
		enabled:  true,
	}
}

// Mint submits one mint transaction crediting the recipient wallet.
func (m *Minter) Mint(ctx context.Context, recipient string) Result {
	if !m.enabled {
		return degraded(errNotConfigured)
	}
	if !common.IsHexAddress(recipient) {
		return degraded(fmt.Errorf("invalid recipient address %q", recipient))
	}

	data, err := m.abi.Pack("mint", common.HexToAddress(recipient), m.amount)
	if err != nil {
		return degraded(err)
	}

	nonce, err := m.client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return degraded(err)
	}

	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return degraded(err)
	}

	tx := types.NewTransaction(nonce, m.contract, big.NewInt(0), mintGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return degraded(err)
	}

	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return degraded(err)
	}

	return Result{TxHash: signed.Hash().Hex()}
}

func degraded(err error) Result {
	return Result{TxHash: ZeroTxHash, Degraded: true, Err: err}
}
