package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitwit/htlcbridge"
	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/settlement"
	"github.com/vitwit/htlcbridge/simchain"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/utils"
	"github.com/vitwit/htlcbridge/verification"
)

type simOptions struct {
	configPath string
	amount     uint64
	timeLock   uint64
	failLock   bool
	verbose    bool
	timeout    time.Duration
}

type simService = settlement.Service[types.RawAddress, types.RawAddress, types.Hash32, types.Hash32, types.Units]

func newSimulateCmd() *cobra.Command {
	opts := simOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a swap between two in-process chains and print its events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newSimBridge(opts)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runSimulation(ctx, b, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "bridge config JSON; both chains must be simulated")
	f.Uint64Var(&opts.amount, "amount", 1000, "amount to transfer")
	f.Uint64Var(&opts.timeLock, "timelock", 100, "time lock in chain ticks")
	f.BoolVar(&opts.failLock, "fail-lock", false, "fail the first counterparty lock and retry it")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log service activity")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	return cmd
}

func newSimBridge(opts simOptions) (*htlcbridge.Bridge, error) {
	var l logger.Logger = logger.NoopLogger{}
	if opts.verbose {
		l = logger.NewZapLogger("debug")
	}

	if opts.configPath == "" {
		return htlcbridge.NewWithDefaults(htlcbridge.WithLogger(l))
	}

	data, err := os.ReadFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := utils.ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if !cfg.Initiator.Network.IsSimulated() || !cfg.Counterparty.Network.IsSimulated() {
		return nil, errors.New("simulate needs simulated networks on both sides")
	}
	return htlcbridge.New(cfg, htlcbridge.WithLogger(l))
}

func runSimulation(ctx context.Context, b *htlcbridge.Bridge, opts simOptions, out io.Writer) error {
	initChain := simchain.NewHash32[types.RawAddress, types.Units](simchain.WithLogger[types.RawAddress, types.Hash32, types.Units](b.Logger()))
	defer initChain.Close()
	cpChain := simchain.NewHash32[types.RawAddress, types.Units](simchain.WithLogger[types.RawAddress, types.Hash32, types.Units](b.Logger()))
	defer cpChain.Close()

	counterparty := cpChain.Counterparty()
	if opts.failLock {
		counterparty.SetCallConfig(simchain.MethodLockBridgeTransferAssets, 1, simchain.CallConfig{
			Err: clients.CounterpartyError(clients.CodeLockTransferAssets, errors.New("simulated lock failure")),
		})
	}

	svc, err := htlcbridge.NewService[types.RawAddress, types.RawAddress, types.Hash32, types.Hash32, types.Units](
		b,
		initChain.Initiator(),
		counterparty,
		settlement.Codecs[types.RawAddress, types.RawAddress, types.Hash32, types.Hash32]{
			Initiator:      types.RawCodec{},
			Recipient:      types.RawCodec{},
			ToCounterparty: types.Identity[types.Hash32](),
			ToInitiator:    types.Identity[types.Hash32](),
		},
		verification.NewVerifier[types.Hash32](verification.SHA256Hasher{}),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	select {
	case <-svc.Started():
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := swap(ctx, svc, counterparty, opts, out); err != nil {
		return err
	}

	stop()
	return <-done
}

func swap(
	ctx context.Context,
	svc *simService,
	counterparty *simchain.Counterparty[types.RawAddress, types.Hash32, types.Units],
	opts simOptions,
	out io.Writer,
) error {
	secret, lock, err := verification.NewSecretAndLock[types.Hash32](verification.SHA256Hasher{})
	if err != nil {
		return err
	}

	id, err := svc.Initiate(ctx,
		types.InitiatorAddressFromString("alice"),
		types.NewRecipientAddress(types.RawAddressFromString("bob")),
		lock,
		types.TimeLock(opts.timeLock),
		types.NewAmount(types.Units(opts.amount)),
	)
	if err != nil {
		return fmt.Errorf("initiate: %w", err)
	}

	for {
		ev, err := svc.Next(ctx)
		if err != nil {
			return err
		}
		printEvent(out, ev)

		switch ev.Kind {
		case settlement.EventLockFailed:
			if err := svc.RetryLock(ctx, id); err != nil {
				return fmt.Errorf("retry lock: %w", err)
			}
		case settlement.EventLocked:
			if err := counterparty.CompleteBridgeTransfer(ctx, id, secret); err != nil {
				return fmt.Errorf("complete counterparty: %w", err)
			}
		case settlement.EventCompleteFailed:
			return ev.Err
		case settlement.EventInitiatorCompleted:
			return nil
		}
	}
}

func printEvent(w io.Writer, ev settlement.Event) {
	if ev.Err != nil {
		fmt.Fprintf(w, "%-13s %-23s %s error=%v\n", ev.Role, ev.Kind, ev.TransferID, ev.Err)
		return
	}
	fmt.Fprintf(w, "%-13s %-23s %s\n", ev.Role, ev.Kind, ev.TransferID)
}
