package eventsvc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeMailer struct {
	sent []*core.EmailMessage
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, ...core.Event) error { return f.err }

func newConfig() *core.Config {
	conf := core.NewConfig()
	conf.Kafka.Brokers = nil
	conf.App.NotifyEmails = nil
	return conf
}

func TestNewKafkaPublisher(t *testing.T) {
	conf := newConfig()
	_, err := NewKafkaPublisher(conf)
	assert.Error(t, err)

	conf.Kafka.Brokers = []string{"localhost:9092"}
	p, err := NewKafkaPublisher(conf)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := new(fakeWriter)
	p := &KafkaPublisher{writer: w, topicPrefix: "bursar"}

	evt := core.NewEvent(core.EventExpenseRecorded, "exp-1", "usr-1", map[string]interface{}{"amount": "12.00"})
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "bursar.expense.recorded", w.msgs[0].Topic)
	assert.Equal(t, []byte("exp-1"), w.msgs[0].Key)

	var got core.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, evt.Type, got.Type)
	assert.Equal(t, evt.ActorID, got.ActorID)

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), evt)
	assert.EqualError(t, err, "writing kafka messages: broker down")

	p.topicPrefix = ""
	assert.Equal(t, core.EventFeesGenerated, p.topic(core.EventFeesGenerated))
}

func TestMulti(t *testing.T) {
	rec1, rec2 := new(Recorder), new(Recorder)
	w := new(fakeWriter)
	boom := errors.New("boom")
	m := Multi{rec1, failing{boom}, &KafkaPublisher{writer: w}, rec2}

	evt := core.NewEvent(core.EventFeesGenerated, "st-1", "", map[string]interface{}{"count": 3})
	err := m.Publish(context.Background(), evt)

	// every publisher is tried despite the failure
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{core.EventFeesGenerated}, rec1.Types())
	assert.Equal(t, []string{core.EventFeesGenerated}, rec2.Types())
	assert.Len(t, w.msgs, 1)

	assert.NoError(t, m.Close())
	assert.True(t, w.closed)
}

type fakeCache struct {
	deleted []string
	err     error
}

func (c *fakeCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (c *fakeCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	if c.err != nil {
		return c.err
	}
	c.deleted = append(c.deleted, keys...)
	return nil
}

func TestCacheInvalidator(t *testing.T) {
	ctx := context.Background()
	cache := new(fakeCache)
	ci := NewCacheInvalidator(cache, "report:dashboard")

	require.NoError(t, ci.Publish(ctx))
	assert.Empty(t, cache.deleted)

	evt := core.NewEvent(core.EventPaymentRecorded, "c-1", "usr-1", nil)
	require.NoError(t, ci.Publish(ctx, evt, evt))
	assert.Equal(t, []string{"report:dashboard"}, cache.deleted)

	cache.err = errors.New("redis down")
	assert.EqualError(t, ci.Publish(ctx, evt), "invalidating cache: redis down")

	require.NoError(t, NewCacheInvalidator(cache).Publish(ctx, evt))
}

func TestMailDigest(t *testing.T) {
	conf := newConfig()
	mailer := new(fakeMailer)

	d := NewMailDigest(conf, mailer)
	require.NoError(t, d.Publish(context.Background(), core.NewEvent(core.EventFeesGenerated, "k", "", nil)))
	assert.Empty(t, mailer.sent)

	conf.App.NotifyEmails = []string{"owner@test.cd", "bursar@test.cd"}
	d = NewMailDigest(conf, mailer)
	require.NoError(t, d.Publish(context.Background()))
	assert.Empty(t, mailer.sent)

	require.NoError(t, d.Publish(context.Background(),
		core.NewEvent(core.EventFeesGenerated, "st-1", "", map[string]interface{}{"count": 4}),
		core.NewEvent(core.EventFeesMarkedOverdue, "2024-10-01", "", map[string]interface{}{"count": 2}),
	))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Len(t, msg.To, 2)
	assert.Equal(t, digestTemplate, msg.TemplateName)
	lines, _ := msg.TemplateData.(map[string]interface{})["Lines"].([]string)
	assert.Len(t, lines, 2)
}

func Test_describe(t *testing.T) {
	at := time.Date(2024, time.October, 1, 8, 30, 0, 0, time.UTC)
	event := func(typ, key string, data interface{}) core.Event {
		return core.Event{Type: typ, Key: key, OccurredAt: at, Data: data}
	}

	tests := []struct {
		name string
		evt  core.Event
		want string
	}{
		{
			name: "payment",
			evt: event(core.EventPaymentRecorded, "c-1", ledger.Collection{
				ID: "c-1", FeeType: fee.TypeTuition, Method: ledger.MethodCash, AmountPaid: decimal.RequireFromString("250"), Status: ledger.StatusPartial,
			}),
			want: "2024-10-01 08:30 UTC: cash payment of 250.00 on tuition fee (c-1), now partial",
		},
		{
			name: "structure",
			evt:  event(core.EventStructureDefined, "s-1", fee.Structure{Type: fee.TypeFood, Amount: decimal.RequireFromString("80.5"), AcademicYear: "2024-2025"}),
			want: "2024-10-01 08:30 UTC: food fee of 80.50 for 2024-2025 (fee_structure.defined)",
		},
		{
			name: "expense",
			evt:  event(core.EventExpenseRecorded, "e-1", expense.Expense{Category: expense.CategoryFuel, Amount: decimal.RequireFromString("40"), Description: "Bus diesel"}),
			want: "2024-10-01 08:30 UTC: fuel expense of 40.00, Bus diesel",
		},
		{
			name: "generated",
			evt:  event(core.EventFeesGenerated, "s-1", map[string]interface{}{"count": 12}),
			want: "2024-10-01 08:30 UTC: 12 fee entries generated",
		},
		{
			name: "overdue",
			evt:  event(core.EventFeesMarkedOverdue, "2024-10-01", map[string]interface{}{"count": 3}),
			want: "2024-10-01 08:30 UTC: 3 fee entries marked overdue as of 2024-10-01",
		},
		{
			name: "unknown payload",
			evt:  event("custom.thing", "x-1", nil),
			want: "2024-10-01 08:30 UTC: custom.thing x-1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.evt))
		})
	}
}
