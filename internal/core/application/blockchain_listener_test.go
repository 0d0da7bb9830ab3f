package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/application"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/crawler"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"
)

type mockCrawler struct {
	eventChan chan crawler.Event
}

func newMockCrawler() *mockCrawler {
	return &mockCrawler{eventChan: make(chan crawler.Event, 10)}
}

func (m *mockCrawler) Start()                                {}
func (m *mockCrawler) Stop()                                 { m.eventChan <- crawler.QuitEvent{} }
func (m *mockCrawler) AddObservable(_ crawler.Observable)    {}
func (m *mockCrawler) RemoveObservable(_ crawler.Observable) {}
func (m *mockCrawler) GetEventChannel() chan crawler.Event   { return m.eventChan }

func TestBlockchainListener(t *testing.T) {
	ctx := context.Background()

	t.Run("an observed deposit confirms the matching escrow", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    escrow.Amount,
			memo:      escrow.Reference,
			confirmed: true,
		})

		crawlerSvc := newMockCrawler()
		listener := application.NewBlockchainListener(
			crawlerSvc, h.explorer, h.escrowSvc, h.dbManager,
		)
		listener.ObserveBlockchain()
		defer listener.StopObserveBlockchain()

		crawlerSvc.eventChan <- crawler.AddressEvent{
			EventType: crawler.AddressDeposit,
			Address:   operatorAddress,
			Transfers: []explorer.Transfer{{
				TxId:   depositTxId,
				From:   senderAddress,
				To:     operatorAddress,
				Amount: escrow.Amount,
			}},
		}

		require.Eventually(t, func() bool {
			stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(
				ctx, escrow.Reference,
			)
			return err == nil && stored.IsDepositConfirmed()
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("already consumed transfers are skipped", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		crawlerSvc := newMockCrawler()
		listener := application.NewBlockchainListener(
			crawlerSvc, h.explorer, h.escrowSvc, h.dbManager,
		)
		listener.ObserveBlockchain()
		defer listener.StopObserveBlockchain()

		crawlerSvc.eventChan <- crawler.AddressEvent{
			EventType: crawler.AddressDeposit,
			Address:   operatorAddress,
			Transfers: []explorer.Transfer{{
				TxId:   depositTxId,
				From:   senderAddress,
				To:     operatorAddress,
				Amount: escrow.Amount,
			}},
		}

		// the escrow stays confirmed and no refund or settlement is sent
		time.Sleep(200 * time.Millisecond)
		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(
			ctx, escrow.Reference,
		)
		require.NoError(t, err)
		require.True(t, stored.IsDepositConfirmed())
		require.Equal(t, 0, h.wallet.transferCount())
	})

	t.Run("transfers without a known reference are ignored", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    decimal.RequireFromString("100"),
			memo:      "unrelated payment",
			confirmed: true,
		})

		crawlerSvc := newMockCrawler()
		listener := application.NewBlockchainListener(
			crawlerSvc, h.explorer, h.escrowSvc, h.dbManager,
		)
		listener.ObserveBlockchain()
		defer listener.StopObserveBlockchain()

		crawlerSvc.eventChan <- crawler.AddressEvent{
			EventType: crawler.AddressDeposit,
			Address:   operatorAddress,
			Transfers: []explorer.Transfer{{
				TxId:   depositTxId,
				From:   senderAddress,
				To:     operatorAddress,
				Amount: decimal.RequireFromString("100"),
			}},
		}

		time.Sleep(200 * time.Millisecond)
		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(
			ctx, escrow.Reference,
		)
		require.NoError(t, err)
		require.Equal(t, domain.EscrowStatusCodeAccepted, stored.Status)
	})
}
