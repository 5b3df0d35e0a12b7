package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vitwit/htlcbridge/types"
)

var _ CounterpartyClient[common.Address, common.Hash, types.EthValue] = (*EVMCounterparty)(nil)

// EVMCounterparty drives the counterparty bridge contract on an EVM chain.
type EVMCounterparty struct {
	*evmContract
}

func NewEVMCounterparty(ctx context.Context, cfg types.ChainConfig, opts ...EVMOption) (*EVMCounterparty, error) {
	c, err := newEVMContract(ctx, types.RoleCounterparty, cfg, counterpartyABI, opts...)
	if err != nil {
		return nil, err
	}
	return &EVMCounterparty{evmContract: c}, nil
}

func (e *EVMCounterparty) GetNetwork() types.Network {
	return e.network
}

func (e *EVMCounterparty) Close() {
	e.close()
}

// LockBridgeTransferAssets locks funds for recipient under the initiator's
// id and hash lock. Every rejection is reported as
// LOCK_TRANSFER_ASSETS_FAILED wrapping the underlying cause.
func (e *EVMCounterparty) LockBridgeTransferAssets(
	ctx context.Context,
	id types.TransferID[common.Hash],
	hashLock types.HashLock[common.Hash],
	timeLock types.TimeLock,
	initiator types.InitiatorAddress[types.RawAddress],
	recipient types.RecipientAddress[common.Address],
	amount types.Amount[types.EthValue],
) error {
	if !amount.IsPositive() {
		return e.lockError(e.contractError(CodeInvalidAmount, fmt.Errorf("amount %s is not positive", amount)))
	}
	if err := e.checkTimeLock(ctx, timeLock); err != nil {
		return e.lockError(err)
	}

	unlock := e.locks.Lock(id.String())
	defer unlock()

	weth, eth := ethValueArgs(amount.Value())
	if err := e.ensureWETHAllowance(ctx, weth); err != nil {
		return e.lockError(err)
	}

	receipt, err := e.transact(ctx, eth, "lockBridgeTransfer",
		initiator.Bytes(),
		[32]byte(id.Inner()),
		[32]byte(hashLock.Inner()),
		new(big.Int).SetUint64(uint64(timeLock)),
		recipient.Inner(),
		weth,
	)
	if err != nil {
		return e.lockError(err)
	}

	e.logger.Info("bridge transfer assets locked", map[string]any{
		"network":     e.network.String(),
		"transfer_id": id.String(),
		"tx":          receipt.TxHash.Hex(),
	})
	return nil
}

// lockError reports err as a lock failure. Failed calls stay retryable.
func (e *EVMCounterparty) lockError(err error) error {
	if IsRetryable(err) {
		return err
	}
	return e.contractError(CodeLockTransferAssets, err)
}

func (e *EVMCounterparty) CompleteBridgeTransfer(ctx context.Context, id types.TransferID[common.Hash], secret types.HashLockPreImage) error {
	preImage, ok := secretBytes32(secret)
	if !ok {
		return e.contractError(CodeInvalidSecret, fmt.Errorf("secret must be 32 bytes, got %d", len(secret)))
	}

	unlock := e.locks.Lock(id.String())
	defer unlock()

	_, err := e.transact(ctx, nil, "completeBridgeTransfer", [32]byte(id.Inner()), preImage)
	return err
}

func (e *EVMCounterparty) AbortBridgeTransfer(ctx context.Context, id types.TransferID[common.Hash]) error {
	unlock := e.locks.Lock(id.String())
	defer unlock()

	if _, err := e.transact(ctx, nil, "abortBridgeTransfer", [32]byte(id.Inner())); err != nil {
		if IsRetryable(err) {
			return err
		}
		return e.contractError(CodeAbortTransfer, err)
	}
	return nil
}

func (e *EVMCounterparty) GetBridgeTransferDetails(
	ctx context.Context,
	id types.TransferID[common.Hash],
) (*types.LockDetails[common.Address, common.Hash, types.EthValue], error) {
	out, err := e.call(ctx, "bridgeTransfers", [32]byte(id.Inner()))
	if err != nil {
		return nil, err
	}
	if len(out) != 7 {
		return nil, e.contractError(CodeContractCallFailed, fmt.Errorf("bridgeTransfers returned %d values", len(out)))
	}

	state, _ := out[6].(uint8)
	if state == evmStateNone {
		return nil, e.contractError(CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}

	originator, _ := out[0].([]byte)
	recipient, _ := out[1].(common.Address)
	weth, _ := out[2].(*big.Int)
	eth, _ := out[3].(*big.Int)
	hashLock, _ := out[4].([32]byte)
	rawTimeLock, _ := out[5].(*big.Int)

	return e.buildDetails(id, originator, recipient, weth, eth, hashLock, rawTimeLock)
}

func (e *EVMCounterparty) buildDetails(
	id types.TransferID[common.Hash],
	originator []byte,
	recipient common.Address,
	weth, eth *big.Int,
	hashLock [32]byte,
	rawTimeLock *big.Int,
) (*types.LockDetails[common.Address, common.Hash, types.EthValue], error) {
	if weth == nil || eth == nil || rawTimeLock == nil {
		return nil, e.contractError(CodeContractCallFailed, errors.New("malformed lock record"))
	}

	amount, err := ethValueFromChain(weth, eth)
	if err != nil {
		return nil, e.contractError(CodeContractCallFailed, err)
	}
	timeLock, err := narrowTimeLock(rawTimeLock)
	if err != nil {
		return nil, e.contractError(CodeContractCallFailed, err)
	}

	return &types.LockDetails[common.Address, common.Hash, types.EthValue]{
		BridgeTransferID: id,
		InitiatorAddress: types.InitiatorAddressFromBytes(originator),
		RecipientAddress: types.NewRecipientAddress(recipient),
		HashLock:         types.NewHashLock(common.Hash(hashLock)),
		TimeLock:         timeLock,
		Amount:           amount,
	}, nil
}

// SubscribeCounterpartyEvents polls the contract's logs. Completion events
// carry the revealed secret together with the lock record read back from
// the contract.
func (e *EVMCounterparty) SubscribeCounterpartyEvents(
	ctx context.Context,
) (<-chan CounterpartyEvent[common.Address, common.Hash, types.EthValue], error) {
	out := make(chan CounterpartyEvent[common.Address, common.Hash, types.EthValue], 16)

	locked := e.eventID("BridgeTransferLocked")
	completed := e.eventID("BridgeTransferCompleted")
	aborted := e.eventID("BridgeTransferAborted")

	handle := func(lg ethtypes.Log) error {
		if len(lg.Topics) < 2 {
			return nil
		}
		id := types.NewTransferID(lg.Topics[1])

		var ev CounterpartyEvent[common.Address, common.Hash, types.EthValue]
		switch lg.Topics[0] {
		case locked:
			if len(lg.Topics) < 3 {
				return fmt.Errorf("locked log without recipient topic")
			}
			fields, err := e.unpackLog("BridgeTransferLocked", lg)
			if err != nil {
				return err
			}
			originator, _ := fields["originator"].([]byte)
			weth, _ := fields["wethAmount"].(*big.Int)
			eth, _ := fields["ethAmount"].(*big.Int)
			hashLock, _ := fields["hashLock"].([32]byte)
			timeLock, _ := fields["timeLock"].(*big.Int)

			details, err := e.buildDetails(id, originator, common.BytesToAddress(lg.Topics[2].Bytes()), weth, eth, hashLock, timeLock)
			if err != nil {
				return err
			}
			ev = LockedEvent(*details)
		case completed:
			fields, err := e.unpackLog("BridgeTransferCompleted", lg)
			if err != nil {
				return err
			}
			preImage, _ := fields["preImage"].([32]byte)

			details, err := e.GetBridgeTransferDetails(ctx, id)
			if err != nil {
				return err
			}
			ev = CompletedEvent(types.CompletedFromLockDetails(*details, types.HashLockPreImage(preImage[:])))
		case aborted:
			ev = CounterpartyEvent[common.Address, common.Hash, types.EthValue]{Kind: CounterpartyEventAborted, TransferID: id}
		default:
			return nil
		}

		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := e.pollLogs(ctx, []common.Hash{locked, completed, aborted}, handle, func() { close(out) }); err != nil {
		return nil, err
	}
	return out, nil
}
