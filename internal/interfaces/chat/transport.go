package chat

import (
	log "github.com/sirupsen/logrus"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/botapi"
)

// Transport abstracts the chat platform the daemon talks through. The
// botapi client is the production implementation; tests plug a fake.
type Transport interface {
	GetUpdates(offset int64, timeout int) ([]botapi.Update, error)
	SendMessage(chatId int64, text string) error
	SendDocument(chatId int64, fileId, caption string) error
}

// notifier adapts the transport to the application Notifier port. Delivery
// failures are logged and swallowed, a notification is never load-bearing.
type notifier struct {
	transport Transport
}

// NewNotifier returns an application notifier delivering through the given
// transport.
func NewNotifier(transport Transport) *notifier {
	return &notifier{transport: transport}
}

func (n *notifier) Notify(userId int64, message string) {
	if err := n.transport.SendMessage(userId, message); err != nil {
		log.WithError(err).Warnf("failed to notify user %d", userId)
	}
}

// forwarder adapts the transport to the application Forwarder port.
type forwarder struct {
	transport Transport
}

// NewForwarder returns an application forwarder delivering through the
// given transport.
func NewForwarder(transport Transport) *forwarder {
	return &forwarder{transport: transport}
}

func (f *forwarder) ForwardText(userId int64, text string) error {
	return f.transport.SendMessage(userId, text)
}

func (f *forwarder) ForwardDocument(userId int64, fileId, caption string) error {
	return f.transport.SendDocument(userId, fileId, caption)
}
