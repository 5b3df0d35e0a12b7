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

var _ InitiatorClient[common.Address, common.Hash, types.EthValue] = (*EVMInitiator)(nil)

// EVMInitiator drives the initiator bridge contract on an EVM chain.
type EVMInitiator struct {
	*evmContract
}

// NewEVMInitiator dials cfg.RPCUrl and binds the initiator contract at
// cfg.ContractAddress. Transactions are signed with cfg.HexSeed.
func NewEVMInitiator(ctx context.Context, cfg types.ChainConfig, opts ...EVMOption) (*EVMInitiator, error) {
	c, err := newEVMContract(ctx, types.RoleInitiator, cfg, initiatorABI, opts...)
	if err != nil {
		return nil, err
	}
	return &EVMInitiator{evmContract: c}, nil
}

func (e *EVMInitiator) GetNetwork() types.Network {
	return e.network
}

func (e *EVMInitiator) Close() {
	e.close()
}

// InitiateBridgeTransfer locks the wrapped part of amount through the
// contract and sends the native part as the transaction value. The
// initiator must be the configured signer.
func (e *EVMInitiator) InitiateBridgeTransfer(
	ctx context.Context,
	initiator types.InitiatorAddress[common.Address],
	recipient types.RecipientAddress[types.RawAddress],
	hashLock types.HashLock[common.Hash],
	timeLock types.TimeLock,
	amount types.Amount[types.EthValue],
) (types.TransferID[common.Hash], error) {
	var zero types.TransferID[common.Hash]

	if !amount.IsPositive() {
		return zero, e.contractError(CodeInvalidAmount, fmt.Errorf("amount %s is not positive", amount))
	}
	if initiator.Inner() != e.auth.From {
		return zero, &types.BridgeError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("initiator %s is not the configured signer %s", initiator.Inner().Hex(), e.auth.From.Hex()),
		}
	}
	if err := e.checkTimeLock(ctx, timeLock); err != nil {
		return zero, err
	}

	unlock := e.locks.Lock(hashLock.String())
	defer unlock()

	weth, eth := ethValueArgs(amount.Value())
	if err := e.ensureWETHAllowance(ctx, weth); err != nil {
		return zero, err
	}

	receipt, err := e.transact(ctx, eth, "initiateBridgeTransfer",
		weth,
		recipient.Bytes(),
		[32]byte(hashLock.Inner()),
		new(big.Int).SetUint64(uint64(timeLock)),
	)
	if err != nil {
		return zero, err
	}

	id, ok := e.initiatedID(receipt)
	if !ok {
		return zero, e.contractError(CodeContractCallFailed, fmt.Errorf("no BridgeTransferInitiated log in %s", receipt.TxHash.Hex()))
	}

	e.logger.Info("bridge transfer initiated", map[string]any{
		"network":     e.network.String(),
		"transfer_id": id.String(),
		"tx":          receipt.TxHash.Hex(),
	})
	return id, nil
}

func (e *EVMInitiator) initiatedID(receipt *ethtypes.Receipt) (types.TransferID[common.Hash], bool) {
	topic := e.eventID("BridgeTransferInitiated")
	for _, lg := range receipt.Logs {
		if lg.Address == e.address && len(lg.Topics) > 1 && lg.Topics[0] == topic {
			return types.NewTransferID(lg.Topics[1]), true
		}
	}
	return types.TransferID[common.Hash]{}, false
}

func (e *EVMInitiator) CompleteBridgeTransfer(ctx context.Context, id types.TransferID[common.Hash], secret types.HashLockPreImage) error {
	preImage, ok := secretBytes32(secret)
	if !ok {
		return e.contractError(CodeInvalidSecret, fmt.Errorf("secret must be 32 bytes, got %d", len(secret)))
	}

	unlock := e.locks.Lock(id.String())
	defer unlock()

	_, err := e.transact(ctx, nil, "completeBridgeTransfer", [32]byte(id.Inner()), preImage)
	return err
}

func (e *EVMInitiator) RefundBridgeTransfer(ctx context.Context, id types.TransferID[common.Hash]) error {
	unlock := e.locks.Lock(id.String())
	defer unlock()

	_, err := e.transact(ctx, nil, "refundBridgeTransfer", [32]byte(id.Inner()))
	return err
}

func (e *EVMInitiator) GetBridgeTransferDetails(
	ctx context.Context,
	id types.TransferID[common.Hash],
) (*types.BridgeTransferDetails[common.Address, common.Hash, types.EthValue], error) {
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

	originator, _ := out[0].(common.Address)
	recipient, _ := out[1].([]byte)
	weth, _ := out[2].(*big.Int)
	eth, _ := out[3].(*big.Int)
	hashLock, _ := out[4].([32]byte)
	rawTimeLock, _ := out[5].(*big.Int)

	return e.buildDetails(id, originator, recipient, weth, eth, hashLock, rawTimeLock)
}

func (e *EVMInitiator) buildDetails(
	id types.TransferID[common.Hash],
	originator common.Address,
	recipient []byte,
	weth, eth *big.Int,
	hashLock [32]byte,
	rawTimeLock *big.Int,
) (*types.BridgeTransferDetails[common.Address, common.Hash, types.EthValue], error) {
	if weth == nil || eth == nil || rawTimeLock == nil {
		return nil, e.contractError(CodeContractCallFailed, errors.New("malformed transfer record"))
	}

	amount, err := ethValueFromChain(weth, eth)
	if err != nil {
		return nil, e.contractError(CodeContractCallFailed, err)
	}
	timeLock, err := narrowTimeLock(rawTimeLock)
	if err != nil {
		return nil, e.contractError(CodeContractCallFailed, err)
	}

	return &types.BridgeTransferDetails[common.Address, common.Hash, types.EthValue]{
		BridgeTransferID: id,
		InitiatorAddress: types.NewInitiatorAddress(originator),
		RecipientAddress: types.RecipientAddressFromBytes(recipient),
		HashLock:         types.NewHashLock(common.Hash(hashLock)),
		TimeLock:         timeLock,
		Amount:           amount,
	}, nil
}

// SubscribeInitiatorEvents polls the contract's logs and emits them in
// block order.
func (e *EVMInitiator) SubscribeInitiatorEvents(
	ctx context.Context,
) (<-chan InitiatorEvent[common.Address, common.Hash, types.EthValue], error) {
	out := make(chan InitiatorEvent[common.Address, common.Hash, types.EthValue], 16)

	initiated := e.eventID("BridgeTransferInitiated")
	completed := e.eventID("BridgeTransferCompleted")
	refunded := e.eventID("BridgeTransferRefunded")

	handle := func(lg ethtypes.Log) error {
		if len(lg.Topics) < 2 {
			return nil
		}
		id := types.NewTransferID(lg.Topics[1])

		var ev InitiatorEvent[common.Address, common.Hash, types.EthValue]
		switch lg.Topics[0] {
		case initiated:
			if len(lg.Topics) < 3 {
				return fmt.Errorf("initiated log without originator topic")
			}
			fields, err := e.unpackLog("BridgeTransferInitiated", lg)
			if err != nil {
				return err
			}
			recipient, _ := fields["recipient"].([]byte)
			weth, _ := fields["wethAmount"].(*big.Int)
			eth, _ := fields["ethAmount"].(*big.Int)
			hashLock, _ := fields["hashLock"].([32]byte)
			timeLock, _ := fields["timeLock"].(*big.Int)

			details, err := e.buildDetails(id, common.BytesToAddress(lg.Topics[2].Bytes()), recipient, weth, eth, hashLock, timeLock)
			if err != nil {
				return err
			}
			ev = InitiatedEvent(*details)
		case completed:
			ev = InitiatorEvent[common.Address, common.Hash, types.EthValue]{Kind: InitiatorEventCompleted, TransferID: id}
		case refunded:
			ev = InitiatorEvent[common.Address, common.Hash, types.EthValue]{Kind: InitiatorEventRefunded, TransferID: id}
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

	if err := e.pollLogs(ctx, []common.Hash{initiated, completed, refunded}, handle, func() { close(out) }); err != nil {
		return nil, err
	}
	return out, nil
}
