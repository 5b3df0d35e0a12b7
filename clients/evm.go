package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/utils"
)

// evmStateNone is the bridgeTransfers state of an unknown id.
const evmStateNone uint8 = 0

const bridgeErrorsABI = `
  { "type": "error", "name": "InvalidAmount", "inputs": [] },
  { "type": "error", "name": "InvalidTimeLock", "inputs": [] },
  { "type": "error", "name": "TransferAlreadyExists", "inputs": [] },
  { "type": "error", "name": "TimeLockNotExpired", "inputs": [] },
  { "type": "error", "name": "InvalidSecret", "inputs": [] },
  { "type": "error", "name": "TransferNotFound", "inputs": [] },
  { "type": "error", "name": "TransferAlreadyCompleted", "inputs": [] }`

const initiatorABI = `[
  {
    "name": "initiateBridgeTransfer",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      { "name": "wethAmount", "type": "uint256" },
      { "name": "recipient", "type": "bytes" },
      { "name": "hashLock", "type": "bytes32" },
      { "name": "timeLock", "type": "uint256" }
    ],
    "outputs": [{ "name": "bridgeTransferId", "type": "bytes32" }]
  },
  {
    "name": "completeBridgeTransfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "bridgeTransferId", "type": "bytes32" },
      { "name": "preImage", "type": "bytes32" }
    ],
    "outputs": []
  },
  {
    "name": "refundBridgeTransfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [{ "name": "bridgeTransferId", "type": "bytes32" }],
    "outputs": []
  },
  {
    "name": "bridgeTransfers",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "bridgeTransferId", "type": "bytes32" }],
    "outputs": [
      { "name": "originator", "type": "address" },
      { "name": "recipient", "type": "bytes" },
      { "name": "wethAmount", "type": "uint256" },
      { "name": "ethAmount", "type": "uint256" },
      { "name": "hashLock", "type": "bytes32" },
      { "name": "timeLock", "type": "uint256" },
      { "name": "state", "type": "uint8" }
    ]
  },
  {
    "name": "BridgeTransferInitiated",
    "type": "event",
    "anonymous": false,
    "inputs": [
      { "name": "bridgeTransferId", "type": "bytes32", "indexed": true },
      { "name": "originator", "type": "address", "indexed": true },
      { "name": "recipient", "type": "bytes", "indexed": false },
      { "name": "wethAmount", "type": "uint256", "indexed": false },
      { "name": "ethAmount", "type": "uint256", "indexed": false },
      { "name": "hashLock", "type": "bytes32", "indexed": false },
      { "name": "timeLock", "type": "uint256", "indexed": false }
    ]
  },
  {
    "name": "BridgeTransferCompleted",
    "type": "event",
    "anonymous": false,
    "inputs": [
      { "name": "bridgeTransferId", "type": "bytes32", "indexed": true },
      { "name": "preImage", "type": "bytes32", "indexed": false }
    ]
  },
  {
    "name": "BridgeTransferRefunded",
    "type": "event",
    "anonymous": false,
    "inputs": [{ "name": "bridgeTransferId", "type": "bytes32", "indexed": true }]
  },` + bridgeErrorsABI + `
]`

const counterpartyABI = `[
  {
    "name": "lockBridgeTransfer",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      { "name": "originator", "type": "bytes" },
      { "name": "bridgeTransferId", "type": "bytes32" },
      { "name": "hashLock", "type": "bytes32" },
      { "name": "timeLock", "type": "uint256" },
      { "name": "recipient", "type": "address" },
      { "name": "wethAmount", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  },
  {
    "name": "completeBridgeTransfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "bridgeTransferId", "type": "bytes32" },
      { "name": "preImage", "type": "bytes32" }
    ],
    "outputs": []
  },
  {
    "name": "abortBridgeTransfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [{ "name": "bridgeTransferId", "type": "bytes32" }],
    "outputs": []
  },
  {
    "name": "bridgeTransfers",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "bridgeTransferId", "type": "bytes32" }],
    "outputs": [
      { "name": "originator", "type": "bytes" },
      { "name": "recipient", "type": "address" },
      { "name": "wethAmount", "type": "uint256" },
      { "name": "ethAmount", "type": "uint256" },
      { "name": "hashLock", "type": "bytes32" },
      { "name": "timeLock", "type": "uint256" },
      { "name": "state", "type": "uint8" }
    ]
  },
  {
    "name": "BridgeTransferLocked",
    "type": "event",
    "anonymous": false,
    "inputs": [
      { "name": "bridgeTransferId", "type": "bytes32", "indexed": true },
      { "name": "recipient", "type": "address", "indexed": true },
      { "name": "originator", "type": "bytes", "indexed": false },
      { "name": "wethAmount", "type": "uint256", "indexed": false },
      { "name": "ethAmount", "type": "uint256", "indexed": false },
      { "name": "hashLock", "type": "bytes32", "indexed": false },
      { "name": "timeLock", "type": "uint256", "indexed": false }
    ]
  },
  {
    "name": "BridgeTransferCompleted",
    "type": "event",
    "anonymous": false,
    "inputs": [
      { "name": "bridgeTransferId", "type": "bytes32", "indexed": true },
      { "name": "preImage", "type": "bytes32", "indexed": false }
    ]
  },
  {
    "name": "BridgeTransferAborted",
    "type": "event",
    "anonymous": false,
    "inputs": [{ "name": "bridgeTransferId", "type": "bytes32", "indexed": true }]
  },` + bridgeErrorsABI + `
]`

// revertCodes maps contract custom errors onto the taxonomy.
var revertCodes = map[string]ErrorCode{
	"InvalidAmount":            CodeInvalidAmount,
	"InvalidTimeLock":          CodeInvalidTimeLock,
	"TransferAlreadyExists":    CodeTransferAlreadyExists,
	"TimeLockNotExpired":       CodeTimeLockNotExpired,
	"InvalidSecret":            CodeInvalidSecret,
	"TransferNotFound":         CodeTransferNotFound,
	"TransferAlreadyCompleted": CodeTransferAlreadyCompleted,
}

// EVMOption configures an EVM adapter.
type EVMOption func(*evmContract)

func WithEVMLogger(l logger.Logger) EVMOption {
	return func(c *evmContract) {
		c.logger = l
	}
}

// WithStartBlock makes event subscriptions replay logs from block n instead
// of starting at the chain head.
func WithStartBlock(n uint64) EVMOption {
	return func(c *evmContract) {
		c.startBlock = &n
	}
}

// WithMaxBlockRange bounds a single eth_getLogs query.
func WithMaxBlockRange(n uint64) EVMOption {
	return func(c *evmContract) {
		if n > 0 {
			c.maxBlockRange = n
		}
	}
}

// evmBackend is the slice of an Ethereum RPC client the adapters use.
// *ethclient.Client satisfies it.
type evmBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

var _ evmBackend = (*ethclient.Client)(nil)

// evmContract holds what both bridge sides share: the RPC connection, the
// bound contract, the signer and the log poller settings.
type evmContract struct {
	role          types.ChainRole
	network       types.Network
	client        evmBackend
	address       common.Address
	abi           abi.ABI
	bound         *bind.BoundContract
	auth          *bind.TransactOpts
	pollInterval  time.Duration
	confirmations uint64
	startBlock    *uint64
	maxBlockRange uint64
	weth          *erc20Token
	locks         *KeyedMutex
	logger        logger.Logger
}

func newEVMContract(
	ctx context.Context,
	role types.ChainRole,
	cfg types.ChainConfig,
	abiJSON string,
	opts ...EVMOption,
) (*evmContract, error) {
	if err := checkEVMConfig(cfg); err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	c, err := bindEVMContract(ctx, role, cfg, abiJSON, client, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func checkEVMConfig(cfg types.ChainConfig) error {
	if !cfg.Network.IsEVM() {
		return &types.BridgeError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not an EVM network", cfg.Network),
		}
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return &types.BridgeError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid contract address %q", cfg.ContractAddress),
		}
	}
	if cfg.WETHAddress != "" && !common.IsHexAddress(cfg.WETHAddress) {
		return &types.BridgeError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid WETH address %q", cfg.WETHAddress),
		}
	}
	return nil
}

// bindEVMContract binds the bridge contract on an established backend. The
// caller keeps ownership of client when an error is returned.
func bindEVMContract(
	ctx context.Context,
	role types.ChainRole,
	cfg types.ChainConfig,
	abiJSON string,
	client evmBackend,
	opts ...EVMOption,
) (*evmContract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge ABI: %w", err)
	}

	key, err := utils.PrivateKeyFromHex(cfg.HexSeed)
	if err != nil {
		return nil, &types.BridgeError{Code: types.ErrConfigError, Message: fmt.Sprintf("invalid signer key: %v", err)}
	}

	auth, err := newTransactor(ctx, client, key)
	if err != nil {
		return nil, err
	}

	address := common.HexToAddress(cfg.ContractAddress)
	c := &evmContract{
		role:          role,
		network:       cfg.Network,
		client:        client,
		address:       address,
		abi:           parsed,
		bound:         bind.NewBoundContract(address, parsed, client, client, client),
		auth:          auth,
		pollInterval:  cfg.PollInterval,
		confirmations: cfg.Confirmations,
		maxBlockRange: 2000,
		locks:         NewKeyedMutex(),
		logger:        logger.NoopLogger{},
	}
	if c.pollInterval <= 0 {
		c.pollInterval = types.DefaultPollInterval
	}

	if cfg.WETHAddress != "" {
		c.weth, err = newERC20(common.HexToAddress(cfg.WETHAddress), client)
		if err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func newTransactor(ctx context.Context, client evmBackend, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return auth, nil
}

func (c *evmContract) close() {
	c.client.Close()
}

// contractError wraps err under code for this contract's role.
func (c *evmContract) contractError(code ErrorCode, err error) *ContractError {
	return &ContractError{Role: c.role, Code: code, Err: err}
}

// classify turns an RPC or revert error into the taxonomy. Known custom
// errors keep their code; everything else is a failed call.
func (c *evmContract) classify(err error) *ContractError {
	var cerr *ContractError
	if errors.As(err, &cerr) {
		return cerr
	}

	if name, ok := c.revertName(err); ok {
		if code, ok := revertCodes[name]; ok {
			return c.contractError(code, err)
		}
	}
	return c.contractError(CodeContractCallFailed, err)
}

// revertName decodes the custom error selector carried by an execution
// revert, if any.
func (c *evmContract) revertName(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}

	s, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}

	data, decErr := hexutil.Decode(s)
	if decErr != nil || len(data) < 4 {
		return "", false
	}

	for name, e := range c.abi.Errors {
		if bytes.Equal(e.ID[:4], data[:4]) {
			return name, true
		}
	}
	return "", false
}

// transact simulates method, then submits it and waits for the receipt. A
// mined but failed transaction is reported as a failed call.
func (c *evmContract) transact(ctx context.Context, value *big.Int, method string, params ...any) (*ethtypes.Receipt, error) {
	if err := c.preflight(ctx, value, method, params...); err != nil {
		return nil, err
	}
	return c.transactOn(ctx, c.bound, value, method, params...)
}

// preflight runs method as an eth_call against the latest state so that a
// revert surfaces with its custom error data before any gas is spent.
func (c *evmContract) preflight(ctx context.Context, value *big.Int, method string, params ...any) error {
	input, err := c.abi.Pack(method, params...)
	if err != nil {
		return c.contractError(CodeContractCallFailed, fmt.Errorf("pack %s: %w", method, err))
	}

	msg := ethereum.CallMsg{From: c.auth.From, To: &c.address, Value: value, Data: input}
	if _, err := c.client.CallContract(ctx, msg, nil); err != nil {
		return c.classify(err)
	}
	return nil
}

func (c *evmContract) transactOn(ctx context.Context, bound *bind.BoundContract, value *big.Int, method string, params ...any) (*ethtypes.Receipt, error) {
	opts := *c.auth
	opts.Context = ctx
	opts.Value = value

	tx, err := bound.Transact(&opts, method, params...)
	if err != nil {
		return nil, c.classify(err)
	}

	c.logger.Debug("bridge transaction submitted", map[string]any{
		"network": c.network.String(),
		"method":  method,
		"tx":      tx.Hash().Hex(),
	})

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, c.contractError(CodeContractCallFailed, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err))
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, c.contractError(CodeContractCallFailed, fmt.Errorf("transaction %s reverted", tx.Hash().Hex()))
	}

	return receipt, nil
}

func (c *evmContract) call(ctx context.Context, method string, params ...any) ([]any, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, c.classify(err)
	}
	return out, nil
}

// checkTimeLock rejects deadlines at or before the latest block time.
func (c *evmContract) checkTimeLock(ctx context.Context, timeLock types.TimeLock) error {
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return c.contractError(CodeContractCallFailed, fmt.Errorf("fetch head: %w", err))
	}
	if uint64(timeLock) <= head.Time {
		return c.contractError(CodeInvalidTimeLock, fmt.Errorf("time lock %d not after block time %d", timeLock, head.Time))
	}
	return nil
}

// pollLogs streams contract logs in block order until ctx ends. A handler
// error stops the poller. done runs when the poller exits.
func (c *evmContract) pollLogs(ctx context.Context, topics []common.Hash, handle func(ethtypes.Log) error, done func()) error {
	from := uint64(0)
	if c.startBlock != nil {
		from = *c.startBlock
	} else {
		head, err := c.client.BlockNumber(ctx)
		if err != nil {
			return c.contractError(CodeContractCallFailed, fmt.Errorf("fetch block number: %w", err))
		}
		from = head + 1
	}

	go func() {
		defer done()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			head, err := c.client.BlockNumber(ctx)
			if err != nil {
				c.logger.Warn("failed to fetch block number", map[string]any{"network": c.network.String(), "error": err.Error()})
				continue
			}
			if head < c.confirmations {
				continue
			}
			head -= c.confirmations

			for from <= head {
				to := head
				if to-from+1 > c.maxBlockRange {
					to = from + c.maxBlockRange - 1
				}

				logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
					FromBlock: new(big.Int).SetUint64(from),
					ToBlock:   new(big.Int).SetUint64(to),
					Addresses: []common.Address{c.address},
					Topics:    [][]common.Hash{topics},
				})
				if err != nil {
					c.logger.Warn("failed to filter logs", map[string]any{
						"network": c.network.String(),
						"from":    from,
						"to":      to,
						"error":   err.Error(),
					})
					break
				}

				for _, lg := range logs {
					if lg.Removed {
						continue
					}
					if err := handle(lg); err != nil {
						if ctx.Err() != nil {
							return
						}
						c.logger.Error("failed to decode bridge log", map[string]any{
							"network": c.network.String(),
							"tx":      lg.TxHash.Hex(),
							"error":   err.Error(),
						})
						return
					}
				}
				from = to + 1
			}
		}
	}()

	return nil
}

func (c *evmContract) eventID(name string) common.Hash {
	return c.abi.Events[name].ID
}

func (c *evmContract) unpackLog(name string, lg ethtypes.Log) (map[string]any, error) {
	fields := make(map[string]any)
	if err := c.abi.UnpackIntoMap(fields, name, lg.Data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return fields, nil
}

// secretBytes32 packs a pre-image into the contracts' bytes32 argument.
func secretBytes32(secret types.HashLockPreImage) ([32]byte, bool) {
	var out [32]byte
	if len(secret) != len(out) {
		return out, false
	}
	copy(out[:], secret)
	return out, true
}

// ethValueArgs splits a value into the wrapped amount argument and the
// native amount sent with the transaction.
func ethValueArgs(v types.EthValue) (weth, eth *big.Int) {
	return new(big.Int).SetUint64(v.Weth()), new(big.Int).SetUint64(v.Eth())
}

// ethValueFromChain rebuilds an EthValue from the contracts' two amount
// fields.
func ethValueFromChain(weth, eth *big.Int) (types.Amount[types.EthValue], error) {
	w, err := narrowAmount(weth)
	if err != nil {
		return types.Amount[types.EthValue]{}, err
	}
	e, err := narrowAmount(eth)
	if err != nil {
		return types.Amount[types.EthValue]{}, err
	}

	switch {
	case w > 0 && e > 0:
		return types.NewAmount(types.WethAndEthValue(w, e)), nil
	case w > 0:
		return types.NewAmount(types.WethValue(w)), nil
	default:
		return types.NewAmount(types.EthOnlyValue(e)), nil
	}
}

func narrowAmount(b *big.Int) (uint64, error) {
	v, overflow := uint256.FromBig(b)
	if overflow {
		return 0, fmt.Errorf("%w: %s", types.ErrAmountOverflow, b)
	}
	u, err := types.UnitsFromUint256(v)
	return uint64(u), err
}

func narrowTimeLock(b *big.Int) (types.TimeLock, error) {
	v, overflow := uint256.FromBig(b)
	if overflow {
		return 0, fmt.Errorf("%w: %s", types.ErrTimeLockOverflow, b)
	}
	return types.TimeLockFromUint256(v)
}
