package application

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/crawler"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"
)

// BlockchainListener consumes the events emitted by the crawler observing
// the operator deposit address and tries to attribute every incoming token
// transfer to an accepted escrow, so that deposits are picked up even when
// the buyer never runs the explicit check command.
type BlockchainListener interface {
	ObserveBlockchain()
	StopObserveBlockchain()
}

type blockchainListener struct {
	crawlerSvc  crawler.Service
	explorerSvc explorer.Service
	escrowSvc   EscrowService
	dbManager   ports.DbManager

	started bool
}

// NewBlockchainListener returns a listener draining the given crawler.
func NewBlockchainListener(
	crawlerSvc crawler.Service,
	explorerSvc explorer.Service,
	escrowSvc EscrowService,
	dbManager ports.DbManager,
) BlockchainListener {
	return &blockchainListener{
		crawlerSvc:  crawlerSvc,
		explorerSvc: explorerSvc,
		escrowSvc:   escrowSvc,
		dbManager:   dbManager,
	}
}

func (b *blockchainListener) ObserveBlockchain() {
	if !b.started {
		go b.crawlerSvc.Start()
		go b.handleBlockChainEvents()
		b.started = true
	}
}

func (b *blockchainListener) StopObserveBlockchain() {
	if b.started {
		b.crawlerSvc.Stop()
		b.started = false
	}
}

func (b *blockchainListener) handleBlockChainEvents() {
	for event := range b.crawlerSvc.GetEventChannel() {
		switch e := event.(type) {
		case crawler.AddressEvent:
			b.handleAddressEvent(e)
		case crawler.QuitEvent:
			return
		}
	}
}

func (b *blockchainListener) handleAddressEvent(event crawler.AddressEvent) {
	ctx := context.Background()

	accepted, err := b.dbManager.EscrowRepository().GetEscrowsForStatus(
		ctx, domain.EscrowStatusCodeAccepted,
	)
	if err != nil {
		log.WithError(err).Warn("sweep: failed to load accepted escrows")
		return
	}
	if len(accepted) <= 0 {
		return
	}

	for _, transfer := range event.Transfers {
		if _, err := b.dbManager.DepositRepository().GetDepositByTxId(
			ctx, transfer.TxId,
		); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrDepositNotFound) {
			log.WithError(err).Warnf("sweep: lookup of tx %s failed", transfer.TxId)
			continue
		}

		// the transfer listing does not carry the memo, the full
		// transaction does.
		tx, err := b.explorerSvc.GetTransaction(transfer.TxId)
		if err != nil {
			log.WithError(err).Debugf("sweep: failed to fetch tx %s", transfer.TxId)
			continue
		}
		memo := strings.ToLower(tx.Memo())
		if len(memo) <= 0 {
			continue
		}

		for i := range accepted {
			escrow := &accepted[i]
			if !strings.Contains(memo, strings.ToLower(escrow.Reference)) {
				continue
			}
			if _, err := b.escrowSvc.VerifyDeposit(
				ctx, escrow.Reference, escrow.BuyerId, transfer.TxId,
			); err != nil {
				log.WithError(err).Debugf(
					"sweep: tx %s not applied to escrow %s",
					transfer.TxId, escrow.Reference,
				)
			} else {
				log.Infof(
					"sweep: tx %s applied to escrow %s",
					transfer.TxId, escrow.Reference,
				)
			}
			break
		}
	}
}
