package app

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watering_notification_bot/internal/domain/notification"
	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/sensor"
	"watering_notification_bot/internal/domain/watering"
	idb "watering_notification_bot/internal/infra/database"
)

var jst = time.FixedZone("JST", 9*60*60)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type wateringFixture struct {
	ledger  *fakeLedger
	reader  *fakeReader
	sender  *fakeSender
	guard   *fakeGuard
	now     time.Time
	service *WateringService
}

func newWateringFixture(profiles ...*plant.Profile) *wateringFixture {
	f := &wateringFixture{
		ledger: &fakeLedger{},
		reader: &fakeReader{values: map[int]int{0: 300, 1: 800}},
		sender: &fakeSender{},
		guard:  newFakeGuard(),
		now:    time.Date(2024, 6, 10, 9, 0, 0, 0, jst),
	}
	f.service = NewWateringService(WateringServiceConfig{
		Profiles:        NewProfileStore(profiles),
		Ledger:          f.ledger,
		Reader:          f.reader,
		Sender:          f.sender,
		Engine:          watering.NewEngine(jst),
		Guard:           f.guard,
		Clock:           func() time.Time { return f.now },
		DispatchTimeout: time.Second,
		Logger:          testLogger(),
	})
	return f
}

func monstera() *planting.Planting {
	return &planting.Planting{ID: 1, UserID: "42", PlantID: 3, DeviceID: 0, PlantName: "モンステラ"}
}

func everyTwoDays() *plant.Profile {
	return &plant.Profile{PlantID: 3, Month: 6, Frequency: "2日に1回", Amount: "鉢底から流れるまで", HumidityWhenDry: 700, HumidityWhenWatered: 450}
}

func TestProcessPlanting_FirstReminderThenSuppressedSameDay(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	ctx := context.Background()

	out, err := f.service.ProcessPlanting(ctx, monstera())
	require.NoError(t, err)
	assert.True(t, out.Notified)
	assert.Equal(t, watering.ReasonFirstReminder, out.Decision.Reason)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "モンステラの水やりが必要です。\n水やり頻度: 2日に1回\n水やり量: 鉢底から流れるまで", f.sender.sent[0].Text)
	assert.Equal(t, 1, f.ledger.count(notification.TypeWatering))

	f.now = f.now.Add(time.Minute)
	out, err = f.service.ProcessPlanting(ctx, monstera())
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Equal(t, watering.ReasonAlreadyNotifiedToday, out.Decision.Reason)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1, f.ledger.count(notification.TypeWatering))
}

func TestProcessPlanting_RecordsObservedHumidity(t *testing.T) {
	f := newWateringFixture(everyTwoDays())

	_, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)

	rec, err := f.ledger.Latest(context.Background(), "42", 3, notification.TypeWatering)
	require.NoError(t, err)
	h, ok := rec.HumidityValue()
	require.True(t, ok)
	assert.Equal(t, 300, h)
	assert.Equal(t, f.now, rec.SentAt)
}

// A failed send leaves no ledger row; records are written only after a successful dispatch.
func TestProcessPlanting_DispatchFailureWritesNothing(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	f.sender.err = errBoom

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.ErrorIs(t, err, ErrDispatchFailure)
	require.NotNil(t, out)
	assert.False(t, out.Notified)
	assert.Equal(t, 0, f.ledger.count(notification.TypeWatering))
	assert.Empty(t, f.guard.held, "guard must be released so the next cycle can retry")

	// Next cycle the gateway is back.
	f.sender.err = nil
	f.now = f.now.Add(time.Minute)
	out, err = f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.True(t, out.Notified)
}

func TestProcessPlanting_LedgerFailureAfterSendKeepsGuard(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	f.ledger.recordErr = idb.ErrPersistence

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.ErrorIs(t, err, idb.ErrPersistence)
	assert.True(t, out.Notified)
	assert.Len(t, f.guard.held, 1)

	// The guard stops a second message today even though the ledger has no record.
	f.ledger.recordErr = nil
	out, err = f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Len(t, f.sender.sent, 1)
}

func TestProcessPlanting_GuardHeldByAnotherWriter(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	f.guard.held[GuardKey("42", 3, f.now)] = true

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.True(t, out.Decision.Notify)
	assert.False(t, out.Notified)
	assert.Empty(t, f.sender.sent)
}

func TestProcessPlanting_GuardErrorDoesNotBlock(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	f.guard.err = errBoom

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.True(t, out.Notified)
}

func TestProcessPlanting_NoProfileIsSkipped(t *testing.T) {
	f := newWateringFixture(&plant.Profile{PlantID: 3, Month: 1, Frequency: "2日に1回"})

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.Empty(t, f.sender.sent)
}

func TestProcessPlanting_ReaderFailureSkips(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	f.reader.err = sensor.ErrReaderFailure

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, sensor.ErrReaderFailure)
	assert.Empty(t, f.sender.sent)
}

func TestProcessPlanting_InvalidChannel(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	p := monstera()
	p.DeviceID = 9

	_, err := f.service.ProcessPlanting(context.Background(), p)
	assert.ErrorIs(t, err, sensor.ErrInvalidChannel)
}

func TestProcessPlanting_InvalidProfile(t *testing.T) {
	f := newWateringFixture(&plant.Profile{PlantID: 3, Month: 6, Frequency: "???"})

	_, err := f.service.ProcessPlanting(context.Background(), monstera())
	assert.ErrorIs(t, err, watering.ErrInvalidProfile)
}

func TestProcessPlanting_LedgerReadFailure(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	f.ledger.readErr = idb.ErrPersistence

	_, err := f.service.ProcessPlanting(context.Background(), monstera())
	assert.ErrorIs(t, err, idb.ErrPersistence)
}

func TestProcessPlanting_MoistureModeUsesReading(t *testing.T) {
	profile := &plant.Profile{PlantID: 3, Month: 6, Frequency: "土が乾いたら", HumidityWhenDry: 700, HumidityWhenWatered: 450}
	f := newWateringFixture(profile)

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Equal(t, watering.ReasonSoilMoist, out.Decision.Reason)

	dry := monstera()
	dry.DeviceID = 1
	out, err = f.service.ProcessPlanting(context.Background(), dry)
	require.NoError(t, err)
	assert.True(t, out.Notified)
	assert.Equal(t, watering.ReasonSoilDry, out.Decision.Reason)
}

func TestProcessPlanting_EffectivenessFeedbackRecorded(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	// Yesterday's reminder was sent on a dry reading of 800; the soil now reads 480.
	require.NoError(t, f.ledger.Record(context.Background(), &notification.Record{
		UserID:   "42",
		PlantID:  3,
		Type:     notification.TypeWatering,
		SentAt:   f.now.AddDate(0, 0, -1),
		Humidity: sql.NullInt64{Int64: 800, Valid: true},
		DeviceID: sql.NullInt64{Int64: 0, Valid: true},
	}))
	f.reader.values[0] = 480

	out, err := f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.False(t, out.Notified)
	require.NotNil(t, out.Judgement)
	assert.Equal(t, watering.JustRight, out.Judgement.Classification)
	assert.True(t, out.FeedbackSent)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "モンステラ: 水やりの量はちょうど良いです。", f.sender.sent[0].Text)
	assert.Equal(t, 1, f.ledger.count(notification.TypeWateringFeedback))

	// The feedback is now the latest record, so no second judgement.
	f.now = f.now.Add(time.Minute)
	out, err = f.service.ProcessPlanting(context.Background(), monstera())
	require.NoError(t, err)
	assert.Nil(t, out.Judgement)
	assert.Len(t, f.sender.sent, 1)
}

func TestProcessPlanting_FeedbackDoesNotSuppressReminder(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	ctx := context.Background()
	require.NoError(t, f.ledger.Record(ctx, &notification.Record{
		UserID: "42", PlantID: 3, Type: notification.TypeWatering,
		SentAt: f.now.AddDate(0, 0, -2), Humidity: sql.NullInt64{Int64: 300, Valid: true},
	}))
	require.NoError(t, f.ledger.Record(ctx, &notification.Record{
		UserID: "42", PlantID: 3, Type: notification.TypeWateringFeedback,
		SentAt: f.now.Add(-time.Hour), Humidity: sql.NullInt64{Int64: 300, Valid: true},
	}))

	out, err := f.service.ProcessPlanting(ctx, monstera())
	require.NoError(t, err)
	assert.True(t, out.Notified)
	assert.Equal(t, watering.ReasonIntervalElapsed, out.Decision.Reason)
}

func TestProcessPlanting_EffectivenessComparesSameChannelOnly(t *testing.T) {
	f := newWateringFixture(everyTwoDays())
	ctx := context.Background()
	pot := monstera()
	pot.ID, pot.DeviceID = 1, 1
	tray := monstera()
	tray.ID, tray.DeviceID = 2, 0

	out, err := f.service.ProcessPlanting(ctx, pot)
	require.NoError(t, err)
	assert.True(t, out.Notified)

	rec, err := f.ledger.Latest(ctx, "42", 3, notification.TypeWatering)
	require.NoError(t, err)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, rec.DeviceID)

	// Channel 0 reads 300 against the 800 recorded on channel 1; that is not a watering outcome.
	out, err = f.service.ProcessPlanting(ctx, tray)
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Nil(t, out.Judgement)
	assert.False(t, out.FeedbackSent)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 0, f.ledger.count(notification.TypeWateringFeedback))
}

func TestGuardKey(t *testing.T) {
	day := time.Date(2024, 6, 10, 23, 59, 0, 0, jst)
	assert.Equal(t, "watering:guard:42:3:2024-06-10", GuardKey("42", 3, day))
}

func TestProfileStore(t *testing.T) {
	store := NewProfileStore([]*plant.Profile{
		{PlantID: 3, Month: 6, Frequency: "old"},
		{PlantID: 3, Month: 6, Frequency: "new"},
		{PlantID: 3, Month: 13, Frequency: "bad"},
		nil,
	})
	assert.Equal(t, 1, store.Len())

	p, ok := store.Get(3, time.June)
	require.True(t, ok)
	assert.Equal(t, "new", p.Frequency)

	_, ok = store.Get(3, time.July)
	assert.False(t, ok)
}
