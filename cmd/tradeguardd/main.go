package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/tradeguard-network/tradeguard-daemon/internal/config"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/application"
	"github.com/tradeguard-network/tradeguard-daemon/internal/interfaces/chat"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/botapi"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/crawler"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/wallet"

	dbbadger "github.com/tradeguard-network/tradeguard-daemon/internal/infrastructure/storage/db/badger"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer/trongrid"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	operatorAddress := config.GetString(config.OperatorAddressKey)
	tokenContract := config.GetString(config.UsdtContractKey)

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	dbManager, err := dbbadger.NewDbManager(dbDir, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer dbManager.Close()

	explorerSvc, err := trongrid.NewService(
		config.GetString(config.TronApiURLKey),
		config.GetString(config.TronApiKeyKey),
		tokenContract,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to the TRON data provider")
	}

	walletSvc, err := wallet.NewService(wallet.Opts{
		ApiURL:          config.GetString(config.TronApiURLKey),
		ApiKey:          config.GetString(config.TronApiKeyKey),
		OperatorAddress: operatorAddress,
		PrivateKeyHex:   config.GetString(config.OperatorPrivateKeyKey),
		TokenContract:   tokenContract,
		FeeLimit:        config.GetInt64(config.TransferFeeLimitKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize the operator wallet")
	}

	botClient, err := botapi.NewClient(
		config.GetString(config.BotApiURLKey),
		config.GetString(config.BotTokenKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize the chat client")
	}

	notifier := chat.NewNotifier(botClient)
	forwarder := chat.NewForwarder(botClient)

	verifier := application.NewDepositVerifier(
		explorerSvc, dbManager.DepositRepository(), operatorAddress,
	)
	relaySvc := application.NewRelayService(dbManager, forwarder, notifier)
	escrowSvc := application.NewEscrowService(
		dbManager, verifier, walletSvc, notifier, relaySvc,
		application.FeePolicy{
			NormalRate:  config.GetDecimal(config.NormalCommissionKey),
			ReducedRate: config.GetDecimal(config.ReducedCommissionKey),
			NetworkFee:  config.GetDecimal(config.NetworkFeeKey),
		},
		config.GetInt64(config.AdminIdKey),
	)
	listingSvc := application.NewListingService(dbManager)
	ratingSvc := application.NewRatingService(dbManager)

	crawlerSvc := crawler.NewService(crawler.Opts{
		ExplorerSvc:            explorerSvc,
		IntervalInMilliseconds: config.GetInt(config.SweepIntervalKey) * 1000,
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("sweep cycle failed")
		},
	})
	crawlerSvc.AddObservable(&crawler.AddressObservable{Address: operatorAddress})

	listener := application.NewBlockchainListener(
		crawlerSvc, explorerSvc, escrowSvc, dbManager,
	)
	listener.ObserveBlockchain()
	defer listener.StopObserveBlockchain()

	handler := chat.NewHandler(
		botClient, listingSvc, escrowSvc, ratingSvc, relaySvc,
		config.GetInt64(config.AdminIdKey),
	)
	go handler.Start()
	defer handler.Stop()

	log.Infof("daemon started, operator address %s", operatorAddress)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
}
