package services

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"sms-support-server/internal/carrier"
	"sms-support-server/internal/db"
	"sms-support-server/internal/events"
	"sms-support-server/internal/locks"
	"sms-support-server/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Send(ctx context.Context, to, body string, mediaURLs []string) (*carrier.SendResult, error) {
	args := m.Called(ctx, to, body, mediaURLs)
	result, _ := args.Get(0).(*carrier.SendResult)
	return result, args.Error(1)
}

// recordingFanout remembers every publish and runs onPublish first, so tests
// can inspect what is stored at the moment subscribers are notified.
type recordingFanout struct {
	mu        sync.Mutex
	published []*models.Message
	onPublish func(conversationID string, msg *models.Message)
}

func (f *recordingFanout) Publish(conversationID string, msg *models.Message) int {
	if f.onPublish != nil {
		f.onPublish(conversationID, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return 1
}

func (f *recordingFanout) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, env := range p.events {
		out = append(out, env.Meta.Type)
	}
	return out
}

type testEnv struct {
	database      *db.Database
	customerRepo  db.CustomerRepository
	convRepo      db.ConversationRepository
	msgRepo       db.MessageRepository
	customers     *CustomerService
	conversations *ConversationService
	messages      *MessageService
	delivery      *DeliveryService
	fanout        *recordingFanout
	publisher     *recordingPublisher
}

// setupTestEnv wires the services over an in-memory database. A nil gateway
// uses the sandbox carrier.
func setupTestEnv(t *testing.T, gateway carrier.Gateway) *testEnv {
	t.Helper()

	database := db.SetupTestDB(t)
	env := &testEnv{
		database:     database,
		customerRepo: db.NewCustomerRepository(database),
		convRepo:     db.NewConversationRepository(database),
		msgRepo:      db.NewMessageRepository(database),
		fanout:       &recordingFanout{},
		publisher:    &recordingPublisher{},
	}
	if gateway == nil {
		gateway = carrier.NewSandboxGateway()
	}

	env.customers = NewCustomerService(env.customerRepo)
	env.conversations = NewConversationService(env.convRepo, env.msgRepo, env.customers, locks.NewKeyedMutex())
	env.messages = NewMessageService(env.msgRepo, env.convRepo)
	env.delivery = NewDeliveryService(env.conversations, env.msgRepo, gateway, env.fanout, env.publisher, 0)
	return env
}

func inboundForm(from, body string) url.Values {
	return url.Values{
		"From":       {from},
		"To":         {"+15559999"},
		"Body":       {body},
		"NumMedia":   {"0"},
		"MessageSid": {"SMinbound"},
	}
}
