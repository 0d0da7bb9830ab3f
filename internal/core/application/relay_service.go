package application

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
)

// RelaySession pairs the two parties of an escrow for anonymous message
// forwarding. Sessions live in memory only and do not survive a restart.
type RelaySession struct {
	Id        string
	Reference string
	BuyerId   int64
	SellerId  int64
}

func (s *RelaySession) counterpart(userId int64) (int64, bool) {
	switch userId {
	case s.BuyerId:
		return s.SellerId, true
	case s.SellerId:
		return s.BuyerId, true
	}
	return 0, false
}

// RelayService forwards chat payloads between the parties of an escrow
// without revealing their identities to each other.
type RelayService interface {
	// OpenRelay opens (or joins) the relay session of the given escrow on
	// behalf of the actor and makes it their active session.
	OpenRelay(ctx context.Context, reference string, actor int64) (*RelaySession, error)
	// Relay forwards the payload to the counterpart of the actor's active
	// session.
	Relay(ctx context.Context, actor int64, payload RelayPayload) error
	// CloseRelay detaches the actor from their active session. When both
	// parties have left, the session is dropped.
	CloseRelay(ctx context.Context, actor int64) error
	// CloseForReference drops the session of the given escrow for both
	// parties, notifying anyone still attached.
	CloseForReference(reference string)
}

type relayService struct {
	dbManager ports.DbManager
	forwarder Forwarder
	notifier  Notifier

	mtx      sync.Mutex
	sessions map[string]*RelaySession // keyed by escrow reference
	active   map[int64]*RelaySession  // keyed by user id
}

// NewRelayService returns an in-memory RelayService.
func NewRelayService(
	dbManager ports.DbManager, forwarder Forwarder, notifier Notifier,
) RelayService {
	return &relayService{
		dbManager: dbManager,
		forwarder: forwarder,
		notifier:  notifier,
		sessions:  make(map[string]*RelaySession),
		active:    make(map[int64]*RelaySession),
	}
}

func (s *relayService) OpenRelay(
	ctx context.Context, reference string, actor int64,
) (*RelaySession, error) {
	escrow, err := s.dbManager.EscrowRepository().GetEscrowByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !escrow.InvolvesParty(actor) {
		return nil, ErrRelayNotAllowed
	}
	// relaying makes sense from acceptance on; a completed escrow keeps its
	// relay open for after-sale support, a rejected or cancelled one does
	// not.
	if escrow.IsPending() || (escrow.IsTerminal() && !escrow.IsCompleted()) {
		return nil, ErrRelayNotAllowed
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	session, ok := s.sessions[reference]
	if !ok {
		session = &RelaySession{
			Id:        uuid.New().String(),
			Reference: reference,
			BuyerId:   escrow.BuyerId,
			SellerId:  escrow.SellerId,
		}
		s.sessions[reference] = session
	}
	s.active[actor] = session
	return session, nil
}

func (s *relayService) Relay(
	ctx context.Context, actor int64, payload RelayPayload,
) error {
	s.mtx.Lock()
	session, ok := s.active[actor]
	s.mtx.Unlock()
	if !ok {
		return ErrRelayNotActive
	}

	counterpart, ok := session.counterpart(actor)
	if !ok {
		return ErrRelayNotActive
	}

	if len(payload.FileId) > 0 {
		return s.forwarder.ForwardDocument(counterpart, payload.FileId, payload.Text)
	}
	return s.forwarder.ForwardText(counterpart, payload.Text)
}

func (s *relayService) CloseRelay(ctx context.Context, actor int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	session, ok := s.active[actor]
	if !ok {
		return ErrRelayNotActive
	}
	delete(s.active, actor)

	if s.active[session.BuyerId] != session && s.active[session.SellerId] != session {
		delete(s.sessions, session.Reference)
	}
	return nil
}

func (s *relayService) CloseForReference(reference string) {
	detached := make([]int64, 0, 2)

	s.mtx.Lock()
	session, ok := s.sessions[reference]
	if ok {
		delete(s.sessions, reference)
		for _, userId := range []int64{session.BuyerId, session.SellerId} {
			if s.active[userId] == session {
				delete(s.active, userId)
				detached = append(detached, userId)
			}
		}
	}
	s.mtx.Unlock()

	if !ok {
		return
	}
	log.Debugf("relay session for escrow %s closed", reference)
	for _, userId := range detached {
		s.notifier.Notify(userId, "The chat relay of this escrow was closed.")
	}
}
