package application_test

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/wallet"
)

const operatorAddress = "TT8AZ3dCpgWJQSw9EXhhyR3uKj81jXxbRB"

type mockTransaction struct {
	hash      string
	sender    string
	recipient string
	amount    decimal.Decimal
	memo      string
	confirmed bool
}

func (m mockTransaction) Hash() string            { return m.hash }
func (m mockTransaction) Contract() string        { return "TXLAQ63Xg1NAzckPwKHvzw7CSEmLMEqcdj" }
func (m mockTransaction) Sender() string          { return m.sender }
func (m mockTransaction) Recipient() string       { return m.recipient }
func (m mockTransaction) Amount() decimal.Decimal { return m.amount }
func (m mockTransaction) Memo() string            { return m.memo }
func (m mockTransaction) Confirmed() bool         { return m.confirmed }
func (m mockTransaction) Timestamp() int64        { return 1700000000 }

type mockExplorer struct {
	mutex     sync.Mutex
	txs       map[string]mockTransaction
	transfers []explorer.Transfer
}

func newMockExplorer() *mockExplorer {
	return &mockExplorer{txs: make(map[string]mockTransaction)}
}

func (m *mockExplorer) addTx(tx mockTransaction) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.txs[tx.hash] = tx
}

func (m *mockExplorer) GetTransaction(txid string) (explorer.Transaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	tx, ok := m.txs[txid]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return tx, nil
}

func (m *mockExplorer) GetRecentTransfers(_ string) ([]explorer.Transfer, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.transfers, nil
}

func (m *mockExplorer) GetBlockHeight() (int, error) {
	return 1000, nil
}

type transferCall struct {
	destination string
	amount      decimal.Decimal
	memo        string
}

type mockWallet struct {
	mutex sync.Mutex
	calls []transferCall
	err   error
	txId  string
}

func newMockWallet() *mockWallet {
	return &mockWallet{txId: "settlementtxid"}
}

func (m *mockWallet) Address() string { return operatorAddress }

func (m *mockWallet) Transfer(
	_ context.Context, destination string, amount decimal.Decimal, memo string,
) (*wallet.TransferResult, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, transferCall{destination, amount, memo})
	return &wallet.TransferResult{TxId: m.txId}, nil
}

func (m *mockWallet) transferCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.calls)
}

type mockNotifier struct {
	mutex    sync.Mutex
	messages map[int64][]string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{messages: make(map[int64][]string)}
}

func (m *mockNotifier) Notify(userId int64, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.messages[userId] = append(m.messages[userId], message)
}

func (m *mockNotifier) countFor(userId int64) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.messages[userId])
}

type forwardedPayload struct {
	userId int64
	text   string
	fileId string
}

type mockForwarder struct {
	mutex     sync.Mutex
	forwarded []forwardedPayload
}

func newMockForwarder() *mockForwarder {
	return &mockForwarder{}
}

func (m *mockForwarder) ForwardText(userId int64, text string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.forwarded = append(m.forwarded, forwardedPayload{userId: userId, text: text})
	return nil
}

func (m *mockForwarder) ForwardDocument(userId int64, fileId, caption string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.forwarded = append(m.forwarded, forwardedPayload{
		userId: userId, text: caption, fileId: fileId,
	})
	return nil
}

type noopRelayCloser struct{}

func (noopRelayCloser) CloseForReference(string) {}
