package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"watering_notification_bot/internal/app"
	"watering_notification_bot/internal/domain/classifier"
	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/planting"
)

type fakeSender struct {
	to    telebot.Recipient
	text  interface{}
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.to, f.text = to, what
	return &telebot.Message{}, f.err
}

func TestSendMessage(t *testing.T) {
	s := &fakeSender{}
	a := &TelebotAdapter{bot: s}

	require.NoError(t, a.SendMessage(context.Background(), "12345", "hello"))
	assert.Equal(t, "12345", s.to.Recipient())
	assert.Equal(t, "hello", s.text)
}

func TestSendMessage_InvalidChatID(t *testing.T) {
	a := &TelebotAdapter{bot: &fakeSender{}}
	assert.Error(t, a.SendMessage(context.Background(), "abc", "hello"))
}

func TestSendMessage_SendError(t *testing.T) {
	a := &TelebotAdapter{bot: &fakeSender{err: errors.New("forbidden")}}
	assert.EqualError(t, a.SendMessage(context.Background(), "1", "hello"), "forbidden")
}

func TestSendMessage_Timeout(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	defer close(s.block)
	a := &TelebotAdapter{bot: s}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.SendMessage(ctx, "1", "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPhotoReply(t *testing.T) {
	p := &plant.Plant{ID: 3, NameJP: "モンステラ"}

	text, markup := photoReply(p, &classifier.Result{SpeciesID: "3", Confidence: 0.93}, nil)
	assert.Contains(t, text, "モンステラ")
	assert.Contains(t, text, "93%")
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, callbackConfirmYes, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, callbackConfirmNo, markup.InlineKeyboard[0][1].Data)

	_, markup = photoReply(nil, &classifier.Result{Confidence: 0.5}, app.ErrLowConfidence)
	assert.Nil(t, markup)

	text, _ = photoReply(nil, nil, fmt.Errorf("%w: 99", app.ErrUnknownPlant))
	assert.Equal(t, "この植物はまだ登録できません。", text)
}

func TestConfirmReply(t *testing.T) {
	assert.Contains(t, confirmReply(&plant.Plant{NameEN: "Pothos"}, nil), "Pothos")
	assert.Contains(t, confirmReply(&plant.Plant{NameEN: "Pothos"}, nil), awaitDeviceIDText)
	assert.Contains(t, confirmReply(nil, nil), "中止")
	assert.Contains(t, confirmReply(nil, app.ErrNoPendingRegistration), "確認待ち")
}

func TestDeviceIDReply(t *testing.T) {
	pl := &planting.Planting{PlantName: "モンステラ", DeviceID: 3}
	assert.Contains(t, deviceIDReply(pl, nil), "センサー3")
	assert.Contains(t, deviceIDReply(nil, app.ErrInvalidDeviceID), "0〜7")
	assert.Contains(t, deviceIDReply(nil, app.ErrAlreadyRegistered), "すでに")
	assert.Equal(t, genericErrorReply, deviceIDReply(nil, errors.New("db down")))
}

func TestDeleteMarkup(t *testing.T) {
	markup := deleteMarkup([]*planting.Planting{
		{ID: 7, PlantName: "モンステラ", DeviceID: 0},
		{ID: 9, PlantName: "ポトス", DeviceID: 2},
	})
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "del_7", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "ポトス（センサー2）", markup.InlineKeyboard[1][0].Text)
}

func TestListText(t *testing.T) {
	assert.Contains(t, listText(nil), "ありません")
	assert.Equal(t, "登録済みの植物:\n・モンステラ（センサー0）",
		listText([]*planting.Planting{{PlantName: "モンステラ", DeviceID: 0}}))
}

func TestRegistrationServiceImplementsFlow(t *testing.T) {
	var _ RegistrationFlow = (*app.RegistrationService)(nil)
}
