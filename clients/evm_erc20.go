package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
  {
    "name": "allowance",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "owner", "type": "address" },
      { "name": "spender", "type": "address" }
    ],
    "outputs": [{ "name": "", "type": "uint256" }]
  },
  {
    "name": "approve",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "spender", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  },
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "owner", "type": "address" }],
    "outputs": [{ "name": "", "type": "uint256" }]
  }
]`

// erc20Token is the slice of ERC-20 the bridge needs to move WETH.
type erc20Token struct {
	address common.Address
	bound   *bind.BoundContract
}

func newERC20(address common.Address, backend bind.ContractBackend) (*erc20Token, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &erc20Token{
		address: address,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (t *erc20Token) callUint(ctx context.Context, method string, params ...any) (*big.Int, error) {
	var out []any
	if err := t.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}

func (t *erc20Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", owner)
}

func (t *erc20Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callUint(ctx, "allowance", owner, spender)
}

// ensureWETHAllowance approves the bridge contract to pull amount WETH from
// the signer when the current allowance is short.
func (c *evmContract) ensureWETHAllowance(ctx context.Context, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if c.weth == nil {
		return c.contractError(CodeInvalidAmount, fmt.Errorf("WETH amount %s requires a configured WETH address", amount))
	}

	allowance, err := c.weth.Allowance(ctx, c.auth.From, c.address)
	if err != nil {
		return c.contractError(CodeContractCallFailed, fmt.Errorf("read WETH allowance: %w", err))
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	balance, err := c.weth.BalanceOf(ctx, c.auth.From)
	if err != nil {
		return c.contractError(CodeContractCallFailed, fmt.Errorf("read WETH balance: %w", err))
	}
	if balance.Cmp(amount) < 0 {
		return c.contractError(CodeInvalidAmount, fmt.Errorf("WETH balance %s is below %s", balance, amount))
	}

	receipt, err := c.transactOn(ctx, c.weth.bound, nil, "approve", c.address, amount)
	if err != nil {
		return err
	}

	c.logger.Info("WETH allowance approved", map[string]any{
		"network": c.network.String(),
		"spender": c.address.Hex(),
		"amount":  amount.String(),
		"tx":      receipt.TxHash.Hex(),
	})
	return nil
}
