package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"

	"securecart/internal/config"
)

// fraudLedgerABI covers the two contract methods the recorder calls.
const fraudLedgerABI = `[
	{"type":"function","name":"recordTransaction","stateMutability":"nonpayable","outputs":[],
	 "inputs":[
		{"name":"_transactionId","type":"string"},
		{"name":"_transactionHash","type":"bytes32"},
		{"name":"_amount","type":"uint256"},
		{"name":"_isFraud","type":"bool"},
		{"name":"_riskScore","type":"uint256"}]},
	{"type":"function","name":"getTransaction","stateMutability":"view",
	 "inputs":[{"name":"_transactionId","type":"string"}],
	 "outputs":[
		{"name":"transactionHash","type":"bytes32"},
		{"name":"amount","type":"uint256"},
		{"name":"isFraud","type":"bool"},
		{"name":"riskScore","type":"uint256"},
		{"name":"timestamp","type":"uint256"},
		{"name":"exists","type":"bool"}]}
]`

// EthereumRecorder writes transaction fingerprints to the fraud ledger
// contract and reads them back.
type EthereumRecorder struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	gasPrice *big.Int
	timeout  time.Duration
	network  string
}

// DialEthereum connects to the configured provider and binds the contract.
// The contract must already be deployed.
func DialEthereum(ctx context.Context, cfg config.BlockchainConfig) (*EthereumRecorder, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, ErrNoContract
	}
	parsed, err := abi.JSON(strings.NewReader(fraudLedgerABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	client, err := ethclient.DialContext(dialCtx, cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.ProviderURL, err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = client.ChainID(dialCtx); err != nil {
			client.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	address := common.HexToAddress(cfg.ContractAddress)
	r := &EthereumRecorder{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		address:  address,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: cfg.GasLimit,
		timeout:  cfg.Timeout,
		network:  cfg.Network,
	}
	if cfg.GasPriceGwei > 0 {
		r.gasPrice = new(big.Int).Mul(big.NewInt(cfg.GasPriceGwei), big.NewInt(params.GWei))
	}
	return r, nil
}

func (r *EthereumRecorder) Close() {
	r.client.Close()
}

// Record submits recordTransaction and waits for the receipt.
func (r *EthereumRecorder) Record(ctx context.Context, e Entry) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := hashBytes(e.PayloadHash)
	if err != nil {
		return Entry{}, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(r.key, r.chainID)
	if err != nil {
		return Entry{}, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = r.gasLimit
	opts.GasPrice = r.gasPrice

	tx, err := r.contract.Transact(opts, "recordTransaction",
		e.RefID, payload, big.NewInt(e.AmountCents), e.IsFraud, big.NewInt(int64(e.RiskScore)))
	if err != nil {
		return Entry{}, fmt.Errorf("send recordTransaction: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, r.client, tx)
	if err != nil {
		return Entry{}, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Entry{}, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	e.Local = false
	e.ChainTxHash = tx.Hash().Hex()
	e.BlockNumber = receipt.BlockNumber.Uint64()
	return e, nil
}

// Lookup reads the contract record for a transaction id.
func (r *EthereumRecorder) Lookup(ctx context.Context, refID string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTransaction", refID); err != nil {
		return Entry{}, fmt.Errorf("call getTransaction: %w", err)
	}
	if len(out) != 6 {
		return Entry{}, fmt.Errorf("getTransaction returned %d values", len(out))
	}
	if exists, _ := out[5].(bool); !exists {
		return Entry{}, ErrNotRecorded
	}

	h, _ := out[0].([32]byte)
	amount, _ := out[1].(*big.Int)
	isFraud, _ := out[2].(bool)
	risk, _ := out[3].(*big.Int)
	ts, _ := out[4].(*big.Int)

	e := Entry{
		Kind:        KindTransaction,
		RefID:       refID,
		PayloadHash: hex.EncodeToString(h[:]),
		IsFraud:     isFraud,
	}
	if amount != nil {
		e.AmountCents = amount.Int64()
	}
	if risk != nil {
		e.RiskScore = int(risk.Int64())
	}
	if ts != nil {
		e.RecordedAt = time.Unix(ts.Int64(), 0).UTC()
	}
	return e, nil
}

func (r *EthereumRecorder) Network(ctx context.Context) (NetworkInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	info := NetworkInfo{
		Mode:            "ethereum",
		Network:         r.network,
		ChainID:         r.chainID.Int64(),
		AccountAddress:  r.from.Hex(),
		ContractAddress: r.address.Hex(),
	}
	block, err := r.client.BlockNumber(ctx)
	if err != nil {
		info.Error = err.Error()
		return info, err
	}
	gas, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		info.Error = err.Error()
		return info, err
	}
	info.Connected = true
	info.LatestBlock = block
	info.GasPriceWei = gas.String()
	return info, nil
}

func hashBytes(h string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(b) != len(out) {
		return out, fmt.Errorf("invalid payload hash %q", h)
	}
	copy(out[:], b)
	return out, nil
}
