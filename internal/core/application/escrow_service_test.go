package application_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/infrastructure/custody"
	dbbadger "github.com/tdex-network/escrowd/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/escrowd/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/escrowd/pkg/mathutil"
	"github.com/tdex-network/escrowd/pkg/stats"
	"github.com/thanhpk/randstr"
)

var ctx = context.Background()

type testLedger struct {
	application.EscrowService
	custody  *custody.Service
	recorder *eventRecorder
	registry *prometheus.Registry
	owner    common.Address
	ledger   common.Address
}

func newTestLedger(t *testing.T) *testLedger {
	registry := prometheus.NewRegistry()
	metrics, err := stats.NewMetrics(registry)
	require.NoError(t, err)

	custodian := custody.NewService()
	recorder := &eventRecorder{}
	owner, ledger := randomAddress(), randomAddress()

	svc, err := application.NewEscrowService(
		inmemory.NewRepoManager(), custodian, recorder, metrics,
		owner, ledger, nil,
	)
	require.NoError(t, err)

	return &testLedger{svc, custodian, recorder, registry, owner, ledger}
}

func (l *testLedger) fundedBuyer(t *testing.T, native string) common.Address {
	buyer := randomAddress()
	require.NoError(t, l.custody.Mint(ctx, buyer, units(t, native)))
	return buyer
}

func (l *testLedger) supportedToken(t *testing.T) common.Address {
	token := randomAddress()
	require.NoError(t, l.AddSupportedToken(ctx, l.owner, token))
	return token
}

func (l *testLedger) paidNativeOrder(
	t *testing.T, buyer common.Address, amount string,
) uint64 {
	id, err := l.CreateOrder(ctx, buyer, units(t, amount), domain.NativeAsset)
	require.NoError(t, err)
	require.NoError(t, l.ProcessNativePayment(ctx, buyer, id, units(t, amount)))
	return id
}

func (l *testLedger) requireStatus(
	t *testing.T, id uint64, status domain.OrderStatus,
) {
	order, err := l.GetOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, status.String(), order.Status.String())
}

func (l *testLedger) requireBalance(
	t *testing.T, asset common.Address, expected string,
) {
	balance, err := l.GetBalance(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, units(t, expected).String(), balance.String())
}

func (l *testLedger) requireNative(
	t *testing.T, account common.Address, expected string,
) {
	balance, err := l.custody.NativeBalance(ctx, account)
	require.NoError(t, err)
	require.Equal(t, units(t, expected).String(), balance.String())
}

func (l *testLedger) requireToken(
	t *testing.T, token, account common.Address, expected string,
) {
	balance, err := l.custody.TokenBalance(ctx, token, account)
	require.NoError(t, err)
	require.Equal(t, units(t, expected).String(), balance.String())
}

func TestNewEscrowService(t *testing.T) {
	owner, ledger := randomAddress(), randomAddress()
	repo := inmemory.NewRepoManager()
	custodian := custody.NewService()

	tests := []struct {
		name          string
		repo          ports.RepoManager
		custodian     ports.Custodian
		owner         common.Address
		ledger        common.Address
		expectedError error
	}{
		{
			name:          "missing_repo",
			custodian:     custodian,
			owner:         owner,
			ledger:        ledger,
			expectedError: application.ErrMissingRepoManager,
		},
		{
			name:          "missing_custodian",
			repo:          repo,
			owner:         owner,
			ledger:        ledger,
			expectedError: application.ErrMissingCustodian,
		},
		{
			name:          "zero_owner",
			repo:          repo,
			custodian:     custodian,
			ledger:        ledger,
			expectedError: application.ErrInvalidOwner,
		},
		{
			name:          "zero_ledger",
			repo:          repo,
			custodian:     custodian,
			owner:         owner,
			expectedError: application.ErrInvalidLedgerAddress,
		},
		{
			name:          "ledger_is_owner",
			repo:          repo,
			custodian:     custodian,
			owner:         owner,
			ledger:        owner,
			expectedError: application.ErrInvalidLedgerAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := application.NewEscrowService(
				tt.repo, tt.custodian, nil, nil, tt.owner, tt.ledger, nil,
			)
			require.ErrorIs(t, err, tt.expectedError)
			require.Nil(t, svc)
		})
	}

	svc, err := application.NewEscrowService(
		repo, custodian, nil, nil, owner, ledger, nil,
	)
	require.NoError(t, err)
	info := svc.GetInfo()
	require.Equal(t, owner, info.Owner)
	require.Equal(t, ledger, info.Ledger)
	require.Equal(t, "10000000000000000", info.MinimumPayment.String())
}

func TestCreateOrder(t *testing.T) {
	l := newTestLedger(t)
	buyer := randomAddress()
	token := randomAddress()

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name          string
			amount        *big.Int
			asset         common.Address
			expectedError error
		}{
			{
				name:          "nil_amount",
				asset:         domain.NativeAsset,
				expectedError: domain.ErrInvalidAmount,
			},
			{
				name:          "below_minimum",
				amount:        big.NewInt(1e16 - 1),
				asset:         domain.NativeAsset,
				expectedError: domain.ErrInvalidAmount,
			},
			{
				name:          "unsupported_token",
				amount:        big.NewInt(1e16),
				asset:         token,
				expectedError: domain.ErrUnsupportedAsset,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				id, err := l.CreateOrder(ctx, buyer, tt.amount, tt.asset)
				require.ErrorIs(t, err, tt.expectedError)
				require.Zero(t, id)
			})
		}

		next, err := l.GetNextOrderID(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1), next)
		require.Empty(t, l.recorder.types())
	})

	t.Run("valid", func(t *testing.T) {
		require.ErrorIs(
			t, l.AddSupportedToken(ctx, buyer, token), domain.ErrNotOwner,
		)
		require.NoError(t, l.AddSupportedToken(ctx, l.owner, token))
		// Adding twice or adding the native sentinel are no-ops.
		require.NoError(t, l.AddSupportedToken(ctx, l.owner, token))
		require.NoError(t, l.AddSupportedToken(ctx, l.owner, domain.NativeAsset))

		tokens, err := l.ListSupportedTokens(ctx)
		require.NoError(t, err)
		require.Equal(t, []common.Address{token}, tokens)

		ok, err := l.IsSupportedToken(ctx, domain.NativeAsset)
		require.NoError(t, err)
		require.True(t, ok)

		assets := []common.Address{domain.NativeAsset, token, domain.NativeAsset}
		for i, asset := range assets {
			id, err := l.CreateOrder(ctx, buyer, big.NewInt(1e16), asset)
			require.NoError(t, err)
			require.Equal(t, uint64(i+1), id)

			e := l.recorder.last()
			require.Equal(t, domain.EventPaymentPending, e.Type)
			require.Equal(t, id, e.OrderID)
			require.Equal(t, buyer, e.Account)
			require.Equal(t, asset, e.Asset)
		}

		order, err := l.GetOrder(ctx, 2)
		require.NoError(t, err)
		require.True(t, order.IsTokenPayment)
		require.Equal(t, token, order.PaymentToken)
		require.True(t, order.IsPending())

		ids, err := l.GetBuyerOrders(ctx, buyer)
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 2, 3}, ids)

		next, err := l.GetNextOrderID(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(4), next)

		order, err = l.GetOrder(ctx, 100)
		require.NoError(t, err)
		require.Nil(t, order)

		// No balance changes on creation.
		balances, err := l.GetAllBalances(ctx)
		require.NoError(t, err)
		require.Empty(t, balances)
	})

	count, err := testutil.GatherAndCount(l.registry, "escrow_operations_total")
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestNativePayment(t *testing.T) {
	l := newTestLedger(t)
	buyer := l.fundedBuyer(t, "1")

	id, err := l.CreateOrder(ctx, buyer, units(t, "0.05"), domain.NativeAsset)
	require.NoError(t, err)

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name          string
			orderID       uint64
			value         string
			expectedError error
		}{
			{
				name:          "order_not_found",
				orderID:       100,
				value:         "0.05",
				expectedError: domain.ErrOrderNotFound,
			},
			{
				name:          "insufficient_payment",
				orderID:       id,
				value:         "0.04",
				expectedError: domain.ErrInsufficientPayment,
			},
			{
				name:          "insufficient_funds",
				orderID:       id,
				value:         "2",
				expectedError: ports.ErrInsufficientFunds,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := l.ProcessNativePayment(ctx, buyer, tt.orderID, units(t, tt.value))
				require.ErrorIs(t, err, tt.expectedError)

				l.requireStatus(t, id, domain.OrderStatusPending)
				l.requireNative(t, buyer, "1")
				l.requireBalance(t, domain.NativeAsset, "0")
			})
		}
	})

	t.Run("exact", func(t *testing.T) {
		l.recorder.reset()

		err := l.ProcessNativePayment(ctx, buyer, id, units(t, "0.05"))
		require.NoError(t, err)

		l.requireStatus(t, id, domain.OrderStatusCompleted)
		l.requireBalance(t, domain.NativeAsset, "0.05")
		l.requireNative(t, buyer, "0.95")
		l.requireNative(t, l.ledger, "0.05")
		require.Equal(t, []domain.EventType{
			domain.EventPaymentReceived, domain.EventPaymentCompleted,
		}, l.recorder.types())

		err = l.ProcessNativePayment(ctx, buyer, id, units(t, "0.05"))
		require.ErrorIs(t, err, domain.ErrOrderNotPending)
	})

	t.Run("overpayment", func(t *testing.T) {
		id, err := l.CreateOrder(ctx, buyer, units(t, "0.01"), domain.NativeAsset)
		require.NoError(t, err)

		err = l.ProcessNativePayment(ctx, buyer, id, units(t, "0.02"))
		require.NoError(t, err)

		l.requireBalance(t, domain.NativeAsset, "0.07")
		l.requireNative(t, buyer, "0.93")

		e := l.recorder.last()
		require.Equal(t, domain.EventPaymentCompleted, e.Type)
		require.Equal(t, units(t, "0.01").String(), e.Amount.String())
	})

	events, err := l.GetEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 6)
	for i, e := range events {
		require.Equal(t, uint64(i+1), e.Seq)
	}
	require.Equal(t, units(t, "0.02").String(), events[4].Amount.String())
}

func TestTokenPayment(t *testing.T) {
	l := newTestLedger(t)
	token := l.supportedToken(t)
	buyer := randomAddress()

	require.NoError(t, l.custody.MintToken(ctx, token, buyer, units(t, "10")))
	require.NoError(t, l.custody.Approve(ctx, token, buyer, l.ledger, units(t, "5")))

	bigOrder, err := l.CreateOrder(ctx, buyer, units(t, "10"), token)
	require.NoError(t, err)
	smallOrder, err := l.CreateOrder(ctx, buyer, units(t, "5"), token)
	require.NoError(t, err)
	nativeOrder, err := l.CreateOrder(ctx, buyer, units(t, "1"), domain.NativeAsset)
	require.NoError(t, err)

	t.Run("invalid", func(t *testing.T) {
		err := l.ProcessTokenPayment(ctx, buyer, bigOrder)
		require.ErrorIs(t, err, domain.ErrInsufficientAllowance)

		err = l.ProcessTokenPayment(ctx, buyer, nativeOrder)
		require.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

		err = l.ProcessNativePayment(ctx, buyer, smallOrder, units(t, "5"))
		require.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

		err = l.ProcessTokenPayment(ctx, buyer, 100)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)

		l.requireStatus(t, bigOrder, domain.OrderStatusPending)
		l.requireToken(t, token, buyer, "10")
	})

	t.Run("valid", func(t *testing.T) {
		l.recorder.reset()

		// Anyone can trigger the pull of the buyer's approved funds.
		err := l.ProcessTokenPayment(ctx, randomAddress(), smallOrder)
		require.NoError(t, err)

		l.requireStatus(t, smallOrder, domain.OrderStatusCompleted)
		l.requireBalance(t, token, "5")
		l.requireToken(t, token, buyer, "5")
		l.requireToken(t, token, l.ledger, "5")

		allowance, err := l.custody.Allowance(ctx, token, buyer, l.ledger)
		require.NoError(t, err)
		require.Zero(t, allowance.Sign())

		require.Equal(t, []domain.EventType{
			domain.EventPaymentReceived, domain.EventPaymentCompleted,
		}, l.recorder.types())
	})

	t.Run("failing_pull", func(t *testing.T) {
		require.NoError(
			t, l.custody.Approve(ctx, token, buyer, l.ledger, units(t, "100")),
		)

		err := l.ProcessTokenPayment(ctx, buyer, bigOrder)
		require.ErrorIs(t, err, ports.ErrInsufficientFunds)

		l.requireStatus(t, bigOrder, domain.OrderStatusPending)
		l.requireBalance(t, token, "5")
		l.requireToken(t, token, buyer, "5")
	})
}

func TestCancelOrders(t *testing.T) {
	l := newTestLedger(t)
	buyer := l.fundedBuyer(t, "1")
	other := randomAddress()

	for i := 0; i < 3; i++ {
		_, err := l.CreateOrder(ctx, buyer, units(t, "0.01"), domain.NativeAsset)
		require.NoError(t, err)
	}
	_, err := l.CreateOrder(ctx, other, units(t, "0.01"), domain.NativeAsset)
	require.NoError(t, err)
	require.NoError(t, l.ProcessNativePayment(ctx, buyer, 3, units(t, "0.01")))

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name          string
			orderIDs      []uint64
			expectedError error
		}{
			{
				name:          "order_not_found",
				orderIDs:      []uint64{1, 99},
				expectedError: domain.ErrOrderNotFound,
			},
			{
				name:          "not_order_owner",
				orderIDs:      []uint64{1, 4},
				expectedError: domain.ErrNotOrderOwner,
			},
			{
				name:          "order_not_pending",
				orderIDs:      []uint64{1, 3},
				expectedError: domain.ErrOrderNotPending,
			},
			{
				name:          "duplicate_order",
				orderIDs:      []uint64{1, 2, 1},
				expectedError: domain.ErrOrderNotPending,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				l.recorder.reset()

				err := l.CancelOrders(ctx, buyer, tt.orderIDs)
				require.ErrorIs(t, err, tt.expectedError)

				l.requireStatus(t, 1, domain.OrderStatusPending)
				l.requireStatus(t, 2, domain.OrderStatusPending)
				require.Empty(t, l.recorder.types())
			})
		}
	})

	t.Run("valid", func(t *testing.T) {
		l.recorder.reset()

		require.NoError(t, l.CancelOrders(ctx, buyer, nil))
		require.Empty(t, l.recorder.types())

		require.NoError(t, l.CancelOrders(ctx, buyer, []uint64{2, 1}))
		l.requireStatus(t, 1, domain.OrderStatusFailed)
		l.requireStatus(t, 2, domain.OrderStatusFailed)
		l.requireStatus(t, 4, domain.OrderStatusPending)

		require.Len(t, l.recorder.events, 2)
		for i, id := range []uint64{2, 1} {
			e := l.recorder.events[i]
			require.Equal(t, domain.EventPaymentFailed, e.Type)
			require.Equal(t, id, e.OrderID)
			require.Equal(t, domain.CancelReason, e.Reason)
		}

		err := l.CancelOrders(ctx, buyer, []uint64{1})
		require.ErrorIs(t, err, domain.ErrOrderNotPending)
	})
}

func TestRefund(t *testing.T) {
	t.Run("native_round_trip", func(t *testing.T) {
		l := newTestLedger(t)
		buyer := l.fundedBuyer(t, "1")
		id := l.paidNativeOrder(t, buyer, "0.05")
		pendingID, err := l.CreateOrder(ctx, buyer, units(t, "0.05"), domain.NativeAsset)
		require.NoError(t, err)

		err = l.InitiateRefund(ctx, buyer, id)
		require.ErrorIs(t, err, domain.ErrNotOwner)
		err = l.InitiateRefund(ctx, l.owner, 100)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
		err = l.InitiateRefund(ctx, l.owner, pendingID)
		require.ErrorIs(t, err, domain.ErrOrderNotCompleted)
		err = l.ProcessRefund(ctx, l.owner, id)
		require.ErrorIs(t, err, domain.ErrOrderNotRefundPending)

		l.recorder.reset()
		require.NoError(t, l.InitiateRefund(ctx, l.owner, id))
		l.requireStatus(t, id, domain.OrderStatusRefundPending)
		err = l.InitiateRefund(ctx, l.owner, id)
		require.ErrorIs(t, err, domain.ErrOrderNotCompleted)

		err = l.ProcessRefund(ctx, buyer, id)
		require.ErrorIs(t, err, domain.ErrNotOwner)
		require.NoError(t, l.ProcessRefund(ctx, l.owner, id))

		l.requireStatus(t, id, domain.OrderStatusRefunded)
		l.requireBalance(t, domain.NativeAsset, "0")
		l.requireNative(t, buyer, "1")
		l.requireNative(t, l.ledger, "0")
		require.Equal(t, []domain.EventType{
			domain.EventRefundPending,
			domain.EventRefundSuccessful,
			domain.EventPaymentRefunded,
		}, l.recorder.types())

		err = l.ProcessRefund(ctx, l.owner, id)
		require.ErrorIs(t, err, domain.ErrOrderNotRefundPending)
	})

	t.Run("token_round_trip", func(t *testing.T) {
		l := newTestLedger(t)
		token := l.supportedToken(t)
		buyer := randomAddress()
		require.NoError(t, l.custody.MintToken(ctx, token, buyer, units(t, "10")))
		require.NoError(t, l.custody.Approve(ctx, token, buyer, l.ledger, units(t, "10")))

		id, err := l.CreateOrder(ctx, buyer, units(t, "4"), token)
		require.NoError(t, err)
		require.NoError(t, l.ProcessTokenPayment(ctx, buyer, id))
		l.requireToken(t, token, buyer, "6")

		require.NoError(t, l.InitiateRefund(ctx, l.owner, id))
		require.NoError(t, l.ProcessRefund(ctx, l.owner, id))

		l.requireStatus(t, id, domain.OrderStatusRefunded)
		l.requireBalance(t, token, "0")
		l.requireToken(t, token, buyer, "10")
		l.requireToken(t, token, l.ledger, "0")
	})

	t.Run("after_sweep", func(t *testing.T) {
		l := newTestLedger(t)
		buyer := l.fundedBuyer(t, "1")
		id := l.paidNativeOrder(t, buyer, "0.05")

		require.NoError(t, l.InitiateRefund(ctx, l.owner, id))
		_, err := l.WithdrawNative(ctx, l.owner)
		require.NoError(t, err)

		err = l.ProcessRefund(ctx, l.owner, id)
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)
		l.requireStatus(t, id, domain.OrderStatusRefundPending)
		l.requireNative(t, buyer, "0.95")
	})
}

func TestRefundTransferFailure(t *testing.T) {
	custodian := &mockCustodian{}
	owner, ledger, buyer := randomAddress(), randomAddress(), randomAddress()
	recorder := &eventRecorder{}

	svc, err := application.NewEscrowService(
		inmemory.NewRepoManager(), custodian, recorder, nil, owner, ledger, nil,
	)
	require.NoError(t, err)

	amount := big.NewInt(5e16)
	custodian.On(
		"TransferNative", mock.Anything, buyer, ledger, mock.Anything,
	).Return(nil).Once()
	custodian.On(
		"TransferNative", mock.Anything, ledger, buyer, mock.Anything,
	).Return(fmt.Errorf("transfer rejected"))

	id, err := svc.CreateOrder(ctx, buyer, amount, domain.NativeAsset)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessNativePayment(ctx, buyer, id, amount))
	require.NoError(t, svc.InitiateRefund(ctx, owner, id))

	recorder.reset()
	err = svc.ProcessRefund(ctx, owner, id)
	require.Error(t, err)
	require.Contains(t, err.Error(), "transfer rejected")

	order, err := svc.GetOrder(ctx, id)
	require.NoError(t, err)
	require.True(t, order.IsRefundPending())

	balance, err := svc.GetBalance(ctx, domain.NativeAsset)
	require.NoError(t, err)
	require.Equal(t, amount.String(), balance.String())
	require.Empty(t, recorder.types())

	custodian.AssertExpectations(t)
}

func TestWithdraw(t *testing.T) {
	l := newTestLedger(t)
	token := l.supportedToken(t)
	buyer := l.fundedBuyer(t, "1")

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name          string
			caller        common.Address
			asset         *common.Address
			expectedError error
		}{
			{
				name:          "native_not_owner",
				caller:        buyer,
				expectedError: domain.ErrNotOwner,
			},
			{
				name:          "native_zero_balance",
				caller:        l.owner,
				expectedError: domain.ErrZeroBalance,
			},
			{
				name:          "token_not_owner",
				caller:        buyer,
				asset:         &token,
				expectedError: domain.ErrNotOwner,
			},
			{
				name:          "token_zero_balance",
				caller:        l.owner,
				asset:         &token,
				expectedError: domain.ErrZeroBalance,
			},
			{
				name:          "token_native_sentinel",
				caller:        l.owner,
				asset:         &domain.NativeAsset,
				expectedError: domain.ErrInvalidAsset,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var err error
				if tt.asset == nil {
					_, err = l.WithdrawNative(ctx, tt.caller)
				} else {
					_, err = l.WithdrawToken(ctx, tt.caller, *tt.asset)
				}
				require.ErrorIs(t, err, tt.expectedError)
			})
		}
	})

	t.Run("valid", func(t *testing.T) {
		l.paidNativeOrder(t, buyer, "0.05")
		l.paidNativeOrder(t, buyer, "0.03")

		require.NoError(t, l.custody.MintToken(ctx, token, buyer, units(t, "3")))
		require.NoError(t, l.custody.Approve(ctx, token, buyer, l.ledger, units(t, "3")))
		id, err := l.CreateOrder(ctx, buyer, units(t, "3"), token)
		require.NoError(t, err)
		require.NoError(t, l.ProcessTokenPayment(ctx, buyer, id))

		l.recorder.reset()

		amount, err := l.WithdrawNative(ctx, l.owner)
		require.NoError(t, err)
		require.Equal(t, units(t, "0.08").String(), amount.String())
		l.requireBalance(t, domain.NativeAsset, "0")
		l.requireNative(t, l.owner, "0.08")
		l.requireNative(t, l.ledger, "0")

		amount, err = l.WithdrawToken(ctx, l.owner, token)
		require.NoError(t, err)
		require.Equal(t, units(t, "3").String(), amount.String())
		l.requireBalance(t, token, "0")
		l.requireToken(t, token, l.owner, "3")

		require.Equal(t, []domain.EventType{
			domain.EventPaymentSent, domain.EventPaymentSent,
		}, l.recorder.types())
		e := l.recorder.last()
		require.Equal(t, l.owner, e.Account)
		require.Equal(t, token, e.Asset)
		require.Zero(t, e.OrderID)

		_, err = l.WithdrawNative(ctx, l.owner)
		require.ErrorIs(t, err, domain.ErrZeroBalance)
	})
}

func units(t *testing.T, amount string) *big.Int {
	n, err := mathutil.ParseUnits(amount, mathutil.NativeDecimals)
	require.NoError(t, err)
	return n
}

func randomAddress() common.Address {
	return common.HexToAddress(randstr.Hex(40))
}

type blockingPublisher struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) PublishEvents([]*domain.Event) {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.started)
		<-p.release
	}
}

func TestPublishOutsideLedgerLock(t *testing.T) {
	publisher := &blockingPublisher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	owner, ledger := randomAddress(), randomAddress()
	svc, err := application.NewEscrowService(
		inmemory.NewRepoManager(), custody.NewService(), publisher, nil,
		owner, ledger, nil,
	)
	require.NoError(t, err)

	buyer := randomAddress()
	amount := big.NewInt(1e16)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.CreateOrder(ctx, buyer, amount, domain.NativeAsset)
		firstDone <- err
	}()
	<-publisher.started

	// The first call is stuck notifying its events, the ledger must still
	// accept new operations.
	secondDone := make(chan error, 1)
	go func() {
		_, err := svc.CreateOrder(ctx, buyer, amount, domain.NativeAsset)
		secondDone <- err
	}()

	select {
	case err := <-secondDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ledger operation blocked by a pending notification")
	}

	close(publisher.release)
	require.NoError(t, <-firstDone)

	ids, err := svc.GetBuyerOrders(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)
}

func TestLedgerRestart(t *testing.T) {
	datadir := t.TempDir()
	owner, ledger := randomAddress(), randomAddress()
	buyer := randomAddress()

	open := func() (application.EscrowService, ports.RepoManager, *custody.Service) {
		repo, err := dbbadger.NewRepoManager(datadir, log.New())
		require.NoError(t, err)
		custodian, err := custody.NewPersistentService(datadir, log.New())
		require.NoError(t, err)
		svc, err := application.NewEscrowService(
			repo, custodian, &eventRecorder{}, nil, owner, ledger, nil,
		)
		require.NoError(t, err)
		return svc, repo, custodian
	}

	svc, repo, custodian := open()
	require.NoError(t, custodian.Mint(ctx, buyer, units(t, "1")))
	id, err := svc.CreateOrder(ctx, buyer, units(t, "0.3"), domain.NativeAsset)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessNativePayment(ctx, buyer, id, units(t, "0.3")))
	repo.Close()
	require.NoError(t, custodian.Close())

	svc, repo, custodian = open()
	defer func() {
		repo.Close()
		custodian.Close()
	}()

	balance, err := svc.GetBalance(ctx, domain.NativeAsset)
	require.NoError(t, err)
	require.Equal(t, units(t, "0.3").String(), balance.String())

	custodied, err := custodian.NativeBalance(ctx, ledger)
	require.NoError(t, err)
	require.Equal(t, balance.String(), custodied.String())

	remaining, err := custodian.NativeBalance(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, units(t, "0.7").String(), remaining.String())

	amount, err := svc.WithdrawNative(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, units(t, "0.3").String(), amount.String())
	withdrawn, err := custodian.NativeBalance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, units(t, "0.3").String(), withdrawn.String())
}
