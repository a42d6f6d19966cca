package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/channels"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/recipients"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter records calls and tracks how many run at once.
type fakeAdapter struct {
	channel  models.Channel
	delay    time.Duration
	calls    int32
	inFlight int32
	peak     int32

	mu   sync.Mutex
	seen []string
}

func (f *fakeAdapter) Channel() models.Channel { return f.channel }

func (f *fakeAdapter) Send(ctx context.Context, to models.Address, msg channels.Message, meta channels.Metadata) channels.Outcome {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	f.seen = append(f.seen, meta.RecipientID+"/"+to.Value)
	f.mu.Unlock()

	return channels.Outcome{Success: true, Provider: models.ProviderSimulated}
}

func newAlert(chs ...models.Channel) *models.Alert {
	return &models.Alert{
		ID:       "alert-1",
		Title:    "Shelter in place",
		Message:  "Severe weather warning",
		Severity: models.SeverityHigh,
		Channels: chs,
		Status:   models.AlertStatusPending,
	}
}

func TestDispatch_SMSAdminWithoutCredentials(t *testing.T) {
	log := logger.NewTestLogger(t)
	sms := channels.NewSMSAdapter(channels.SMSConfig{Provider: channels.ProviderConfig{Live: false}}, nil, log)
	d := New(Config{MaxConcurrency: 4}, log, sms)

	users := []models.Recipient{
		{ID: "admin-1", Role: "admin", Phone: "+15551230000", Channels: models.ChannelPreferences{SMS: true}},
		{ID: "user-1", Role: "user", Phone: "+15551230001", Channels: models.ChannelPreferences{SMS: true}},
	}
	rs, err := recipients.Resolve(models.Targeting{Roles: []string{"admin"}}, users)
	require.NoError(t, err)

	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelSMS), rs)

	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, models.ProviderSimulated, attempts[0].Provider)
	assert.Equal(t, "admin-1", attempts[0].RecipientID)
	assert.Equal(t, models.DeliveryStats{Total: 1, Sent: 1, Failed: 0, Pending: 0}, stats.Reduce(attempts))
}

func TestDispatch_SingleChannelUsers(t *testing.T) {
	email := &fakeAdapter{channel: models.ChannelEmail}
	sms := &fakeAdapter{channel: models.ChannelSMS}
	d := New(Config{}, logger.NewNoOpLogger(), email, sms)

	rs := []models.Recipient{
		{ID: "u1", Email: "u1@example.com", Phone: "+15550000001", Channels: models.ChannelPreferences{Email: true}},
		{ID: "u2", Email: "u2@example.com", Phone: "+15550000002", Channels: models.ChannelPreferences{SMS: true}},
	}

	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelEmail, models.ChannelSMS), rs)

	require.Len(t, attempts, 2)
	assert.Equal(t, int32(1), email.calls)
	assert.Equal(t, int32(1), sms.calls)
	assert.Equal(t, []string{"u1/u1@example.com"}, email.seen)
	assert.Equal(t, []string{"u2/+15550000002"}, sms.seen)
}

func TestDispatch_NoRecipients(t *testing.T) {
	email := &fakeAdapter{channel: models.ChannelEmail}
	d := New(Config{}, logger.NewNoOpLogger(), email)

	rs, err := recipients.Resolve(models.Targeting{All: true}, nil)
	require.NoError(t, err)

	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelEmail), rs)
	assert.Empty(t, attempts)
	assert.Equal(t, models.DeliveryStats{}, stats.Reduce(attempts))
	assert.Equal(t, int32(0), email.calls)
}

func TestDispatch_AttemptsMatchEligiblePairs(t *testing.T) {
	adapters := []channels.Adapter{
		&fakeAdapter{channel: models.ChannelEmail},
		&fakeAdapter{channel: models.ChannelSMS},
		&fakeAdapter{channel: models.ChannelPush},
	}
	d := New(Config{MaxConcurrency: 3}, logger.NewNoOpLogger(), adapters...)

	var rs []models.Recipient
	for i := 0; i < 30; i++ {
		r := models.Recipient{
			ID: fmt.Sprintf("u%d", i),
			Channels: models.ChannelPreferences{
				Email: i%2 == 0,
				SMS:   i%3 == 0,
				Push:  i%5 != 0,
			},
		}
		if i%4 != 0 {
			r.Email = fmt.Sprintf("u%d@example.com", i)
		}
		if i%7 != 0 {
			r.Phone = fmt.Sprintf("+1555000%04d", i)
		}
		if i%2 == 1 {
			r.PushToken = models.PushToken{Kind: models.PushTokenExpo, Value: fmt.Sprintf("ExponentPushToken[t%d]", i)}
		}
		rs = append(rs, r)
	}

	alert := newAlert(models.AllChannels...)
	want := 0
	for _, r := range rs {
		for _, c := range alert.Channels {
			if r.Eligible(c) {
				want++
			}
		}
	}

	attempts := d.Dispatch(context.Background(), alert, rs)
	assert.Len(t, attempts, want)
	assert.Len(t, d.Plan(alert, rs), want)

	for i, target := range d.Plan(alert, rs) {
		assert.Equal(t, target.Recipient.ID, attempts[i].RecipientID)
		assert.Equal(t, target.Channel, attempts[i].Channel)
		assert.Equal(t, "alert-1", attempts[i].AlertID)
	}
}

func TestDispatch_IneligibleAddressNeverReachesAdapter(t *testing.T) {
	email := &fakeAdapter{channel: models.ChannelEmail}
	d := New(Config{}, logger.NewNoOpLogger(), email)

	rs := []models.Recipient{{ID: "u1", Email: "   ", Channels: models.ChannelPreferences{Email: true}}}
	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelEmail), rs)

	assert.Empty(t, attempts)
	assert.Equal(t, int32(0), email.calls)
}

func TestDispatch_RespectsConcurrencyLimit(t *testing.T) {
	push := &fakeAdapter{channel: models.ChannelPush, delay: 10 * time.Millisecond}
	d := New(Config{MaxConcurrency: 2}, logger.NewNoOpLogger(), push)

	var rs []models.Recipient
	for i := 0; i < 10; i++ {
		rs = append(rs, models.Recipient{
			ID:        fmt.Sprintf("u%d", i),
			Channels:  models.ChannelPreferences{Push: true},
			PushToken: models.PushToken{Kind: models.PushTokenOther, Value: fmt.Sprintf("device-token-%010d", i)},
		})
	}

	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelPush), rs)
	assert.Len(t, attempts, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&push.peak), int32(2))
}

func TestDispatch_SkipsChannelWithoutAdapter(t *testing.T) {
	email := &fakeAdapter{channel: models.ChannelEmail}
	d := New(Config{}, logger.NewTestLogger(t), email)

	rs := []models.Recipient{{
		ID:       "u1",
		Email:    "u1@example.com",
		Phone:    "+15550000001",
		Channels: models.ChannelPreferences{Email: true, SMS: true},
	}}
	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelEmail, models.ChannelSMS), rs)

	require.Len(t, attempts, 1)
	assert.Equal(t, models.ChannelEmail, attempts[0].Channel)
}

func TestDispatch_FailedPreconditionIsRecorded(t *testing.T) {
	log := logger.NewNoOpLogger()
	email := channels.NewEmailAdapter(channels.EmailConfig{Provider: channels.ProviderConfig{Live: false}}, nil, log)
	d := New(Config{}, log, email)

	rs := []models.Recipient{{ID: "u1", Email: "not-an-address", Channels: models.ChannelPreferences{Email: true}}}
	attempts := d.Dispatch(context.Background(), newAlert(models.ChannelEmail), rs)

	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, models.ReasonMissingOrInvalidAddress, attempts[0].Reason)
	assert.Equal(t, models.AlertStatusFailed, stats.FinalStatus(stats.Reduce(attempts)))
}
