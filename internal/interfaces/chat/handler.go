package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/application"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/botapi"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
)

const (
	pollTimeoutSeconds = 20
	listPageSize       = 10
)

const welcomeText = `Welcome to the escrow desk. Payments are held in USDT (TRC-20) until the buyer confirms delivery.

/sell <price> <digital|physical> <name> - list an item
/list [page] - browse available items
/search <text> - search the catalog
/offer <item id> - open an offer on an item
/accept <ref> <payout address> - accept an offer (seller)
/refusal <ref> - refuse an offer (seller)
/checkdeposit <ref> <txid> - verify your deposit (buyer)
/confirm <ref> <txid> - release the payment (buyer)
/refund <ref> [address] - refund an over-payment (buyer)
/cancel <ref or item id> - cancel an escrow or a listing
/rate <ref> <1-5> [review] - rate the other party
/chat <ref> - open the anonymous relay
/off - leave the relay`

// Handler drives the chat loop: it long-polls the transport for updates
// and dispatches each command to the matching application service. Replies
// and errors always go back to the chat that issued the command.
type Handler struct {
	transport  Transport
	listingSvc application.ListingService
	escrowSvc  application.EscrowService
	ratingSvc  application.RatingService
	relaySvc   application.RelayService
	adminId    int64

	commands map[string]commandFunc
	stopChan chan struct{}
}

type commandFunc func(ctx context.Context, userId int64, args []string) string

// NewHandler returns a chat Handler wired to the given services.
func NewHandler(
	transport Transport,
	listingSvc application.ListingService,
	escrowSvc application.EscrowService,
	ratingSvc application.RatingService,
	relaySvc application.RelayService,
	adminId int64,
) *Handler {
	h := &Handler{
		transport:  transport,
		listingSvc: listingSvc,
		escrowSvc:  escrowSvc,
		ratingSvc:  ratingSvc,
		relaySvc:   relaySvc,
		adminId:    adminId,
		stopChan:   make(chan struct{}),
	}
	h.commands = map[string]commandFunc{
		"/start":        h.handleStart,
		"/sell":         h.handleSell,
		"/list":         h.handleList,
		"/search":       h.handleSearch,
		"/offer":        h.handleOffer,
		"/accept":       h.handleAccept,
		"/refusal":      h.handleRefusal,
		"/checkdeposit": h.handleCheckDeposit,
		"/confirm":      h.handleConfirm,
		"/refund":       h.handleRefund,
		"/cancel":       h.handleCancel,
		"/rate":         h.handleRate,
		"/chat":         h.handleChat,
		"/off":          h.handleOff,
		"/warexit":      h.handleWarExit,
	}
	return h
}

// Start runs the update loop until Stop is called. It blocks.
func (h *Handler) Start() {
	var offset int64
	for {
		select {
		case <-h.stopChan:
			return
		default:
		}

		updates, err := h.transport.GetUpdates(offset, pollTimeoutSeconds)
		if err != nil {
			log.WithError(err).Warn("chat: failed to fetch updates")
			continue
		}
		for _, update := range updates {
			if update.UpdateId >= offset {
				offset = update.UpdateId + 1
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			h.handleMessage(update.Message)
		}
	}
}

// Stop makes the update loop return after the in-flight poll.
func (h *Handler) Stop() {
	close(h.stopChan)
}

func (h *Handler) handleMessage(msg *botapi.Message) {
	ctx := context.Background()
	userId := msg.From.Id

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		command, ok := h.commands[strings.ToLower(fields[0])]
		if !ok {
			h.reply(userId, "Unknown command. Send /start for the list of commands.")
			return
		}
		h.reply(userId, command(ctx, userId, fields[1:]))
		return
	}

	// anything that is not a command goes through the relay
	payload := application.RelayPayload{Text: text}
	if msg.Document != nil {
		payload.Text = msg.Caption
		payload.FileId = msg.Document.FileId
		payload.FileName = msg.Document.FileName
	}
	if len(payload.Text) <= 0 && len(payload.FileId) <= 0 {
		return
	}
	if err := h.relaySvc.Relay(ctx, userId, payload); err != nil {
		h.reply(userId, h.errorMessage(err))
	}
}

func (h *Handler) handleStart(_ context.Context, _ int64, _ []string) string {
	return welcomeText
}

func (h *Handler) handleSell(ctx context.Context, userId int64, args []string) string {
	if len(args) < 3 {
		return "Usage: /sell <price> <digital|physical> <name>"
	}
	price, err := decimal.NewFromString(args[0])
	if err != nil {
		return "The price must be a number, like 25 or 19.99."
	}
	name := strings.Join(args[2:], " ")

	item, err := h.listingSvc.Sell(ctx, userId, name, price, args[1])
	if err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf(
		"Listed '%s' for %s USDT. Item id: %s", item.Name, item.Price, item.Id,
	)
}

func (h *Handler) handleList(ctx context.Context, _ int64, args []string) string {
	pageNumber := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			pageNumber = n
		}
	}

	items, err := h.listingSvc.AvailableItems(
		ctx, domain.NewPage(pageNumber, listPageSize),
	)
	if err != nil {
		return h.errorMessage(err)
	}
	if len(items) <= 0 {
		return "No items on this page."
	}
	return formatItems(items)
}

func (h *Handler) handleSearch(ctx context.Context, _ int64, args []string) string {
	if len(args) < 1 {
		return "Usage: /search <text>"
	}

	items, err := h.listingSvc.Search(
		ctx, strings.Join(args, " "), domain.NewPage(1, listPageSize),
	)
	if err != nil {
		return h.errorMessage(err)
	}
	if len(items) <= 0 {
		return "Nothing found."
	}
	return formatItems(items)
}

func (h *Handler) handleOffer(ctx context.Context, userId int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /offer <item id>"
	}

	escrow, err := h.escrowSvc.CreateOffer(ctx, args[0], userId)
	if err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf(
		"Offer opened, reference %s. The seller has been notified; "+
			"you will hear back once they accept or refuse.",
		escrow.Reference,
	)
}

func (h *Handler) handleAccept(ctx context.Context, userId int64, args []string) string {
	if len(args) != 2 {
		return "Usage: /accept <ref> <payout address>"
	}

	escrow, err := h.escrowSvc.Accept(ctx, args[0], userId, args[1])
	if err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf(
		"Offer %s accepted. The buyer received the deposit instructions.",
		escrow.Reference,
	)
}

func (h *Handler) handleRefusal(ctx context.Context, userId int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /refusal <ref>"
	}

	if err := h.escrowSvc.Reject(ctx, args[0], userId); err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf("Offer %s refused.", args[0])
}

func (h *Handler) handleCheckDeposit(ctx context.Context, userId int64, args []string) string {
	if len(args) != 2 {
		return "Usage: /checkdeposit <ref> <txid>"
	}

	escrow, err := h.escrowSvc.VerifyDeposit(ctx, args[0], userId, args[1])
	if err != nil {
		return h.errorMessage(err)
	}
	switch {
	case escrow.IsDepositConfirmed():
		return fmt.Sprintf(
			"Deposit confirmed. Once you received the goods run /confirm %s %s "+
				"to release the payment.",
			escrow.Reference, args[1],
		)
	case escrow.IsDepositOverpaid():
		return fmt.Sprintf(
			"The deposit exceeds the agreed amount. Run /refund %s to get it back "+
				"at the reduced commission.",
			escrow.Reference,
		)
	default:
		return "The deposit was below the agreed amount; the escrow was " +
			"cancelled and the partial amount sent back."
	}
}

func (h *Handler) handleConfirm(ctx context.Context, userId int64, args []string) string {
	if len(args) != 2 {
		return "Usage: /confirm <ref> <txid>"
	}

	result, err := h.escrowSvc.ConfirmCompletion(ctx, args[0], userId, args[1])
	if err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf(
		"Payment released to the seller (tx %s). Thank you for confirming.",
		result.TxId,
	)
}

func (h *Handler) handleRefund(ctx context.Context, userId int64, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /refund <ref> [destination address]"
	}
	destination := ""
	if len(args) == 2 {
		destination = args[1]
	}

	result, err := h.escrowSvc.RefundOverpayment(ctx, args[0], userId, destination)
	if err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf("Refund sent (tx %s).", result.TxId)
}

func (h *Handler) handleCancel(ctx context.Context, userId int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /cancel <escrow ref or item id>"
	}

	// escrow references and item ids have distinct lengths
	switch len(args[0]) {
	case domain.EscrowReferenceLength:
		if err := h.escrowSvc.Cancel(ctx, args[0], userId); err != nil {
			return h.errorMessage(err)
		}
		return fmt.Sprintf("Escrow %s cancelled.", args[0])
	default:
		if err := h.listingSvc.CancelListing(ctx, args[0], userId); err != nil {
			return h.errorMessage(err)
		}
		return fmt.Sprintf("Listing %s withdrawn.", args[0])
	}
}

func (h *Handler) handleRate(ctx context.Context, userId int64, args []string) string {
	if len(args) < 2 {
		return "Usage: /rate <ref> <1-5> [review]"
	}
	score, err := strconv.Atoi(args[1])
	if err != nil {
		return "The score must be a number between 1 and 5."
	}
	review := strings.Join(args[2:], " ")

	if _, err := h.ratingSvc.Rate(ctx, args[0], userId, score, review); err != nil {
		return h.errorMessage(err)
	}
	return "Rating recorded, thank you."
}

func (h *Handler) handleChat(ctx context.Context, userId int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /chat <ref>"
	}

	if _, err := h.relaySvc.OpenRelay(ctx, args[0], userId); err != nil {
		return h.errorMessage(err)
	}
	return "Relay open. Everything you send now is forwarded anonymously " +
		"to the other party. Send /off to leave."
}

func (h *Handler) handleOff(ctx context.Context, userId int64, _ []string) string {
	if err := h.relaySvc.CloseRelay(ctx, userId); err != nil {
		return h.errorMessage(err)
	}
	return "You left the relay."
}

func (h *Handler) handleWarExit(ctx context.Context, userId int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /warexit <ref>"
	}
	if userId != h.adminId {
		return "This command is reserved to the administrator."
	}

	if err := h.escrowSvc.ForceCancel(ctx, args[0], userId); err != nil {
		return h.errorMessage(err)
	}
	return fmt.Sprintf("Escrow %s terminated.", args[0])
}

func (h *Handler) reply(userId int64, text string) {
	if len(text) <= 0 {
		return
	}
	if err := h.transport.SendMessage(userId, text); err != nil {
		log.WithError(err).Warnf("chat: failed to reply to user %d", userId)
	}
}

func (h *Handler) errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return "No item with that id."
	case errors.Is(err, domain.ErrItemUnavailable):
		return "This item is not available right now."
	case errors.Is(err, domain.ErrItemInvalidPrice):
		return "The price must be greater than zero."
	case errors.Is(err, domain.ErrItemInvalidKind):
		return "The kind must be either digital or physical."
	case errors.Is(err, domain.ErrEscrowNotFound):
		return "No escrow with that reference."
	case errors.Is(err, domain.ErrEscrowInvalidStatus):
		return "The escrow is not in the right state for that."
	case errors.Is(err, domain.ErrUnauthorized):
		return "You are not allowed to do that."
	case errors.Is(err, domain.ErrDepositAlreadyConsumed):
		return "That transaction was already used for another escrow."
	case errors.Is(err, domain.ErrRatingExists):
		return "You already rated this escrow."
	case errors.Is(err, domain.ErrRatingInvalidScore):
		return "The score must be between 1 and 5."
	case errors.Is(err, tronutil.ErrInvalidAddress):
		return "That does not look like a valid TRON address."
	case errors.Is(err, application.ErrVerificationFailed):
		return "The deposit could not be verified. Check the txid and make " +
			"sure the transfer carries the escrow reference in its memo."
	case errors.Is(err, application.ErrSettlementFailed):
		return "The transfer could not be confirmed right now. Nothing was " +
			"lost; please try again in a few minutes."
	case errors.Is(err, application.ErrRelayNotActive):
		return "You have no open relay. Use /chat <ref> to open one."
	case errors.Is(err, application.ErrRelayNotAllowed):
		return "No relay is available for that escrow."
	default:
		log.WithError(err).Error("chat: unexpected error")
		return "Something went wrong, please try again later."
	}
}

func formatItems(items []domain.Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf(
			"%s  %s USDT  %s (%s)", item.Id, item.Price, item.Name, item.Kind,
		))
	}
	return strings.Join(lines, "\n")
}
