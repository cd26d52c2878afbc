package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"watering_notification_bot/internal/app"
	"watering_notification_bot/internal/domain/classifier"
	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/user"
)

const (
	callbackConfirmYes    = "reg_yes"
	callbackConfirmNo     = "reg_no"
	callbackDeletePrefix  = "del_"
	maxPhotoBytes         = 10 << 20
	genericErrorReply     = "エラーが発生しました。しばらくしてからもう一度お試しください。"
	helpText              = "植物の写真を送ると種類を判定して登録します。\n\n/list - 登録済みの植物を表示\n/delete - 登録を削除\n/cancel - 登録を中止\n/help - このメッセージを表示"
	startText             = "こんにちは！水やりのタイミングをお知らせするボットです。\n" + helpText
	awaitDeviceIDText     = "センサーの番号（0〜7）を送ってください。"
	awaitConfirmationText = "上のボタンで「はい」か「いいえ」を選んでください。"
)

// RegistrationFlow is the conversation logic behind the chat handlers.
type RegistrationFlow interface {
	HandlePhoto(ctx context.Context, userID string, image []byte) (*plant.Plant, *classifier.Result, error)
	Confirm(ctx context.Context, userID string, accepted bool) (*plant.Plant, error)
	SubmitDeviceID(ctx context.Context, userID, text string) (*planting.Planting, error)
	Cancel(ctx context.Context, userID string) error
	CurrentState(ctx context.Context, userID string) (user.State, error)
	ListPlantings(ctx context.Context, userID string) ([]*planting.Planting, error)
	DeletePlanting(ctx context.Context, userID string, plantingID int64) (*planting.Planting, error)
}

// RegisterBotCommands wires the user facing commands, photo registration and deletion.
func RegisterBotCommands(ctx context.Context, b *telebot.Bot, flow RegistrationFlow, baseLogger *logrus.Entry) {
	h := &handlers{ctx: ctx, flow: flow, logger: baseLogger.WithField("handler_group", "registration")}

	b.Handle("/start", h.onStart)
	b.Handle("/help", func(c telebot.Context) error { return c.Send(helpText) })
	b.Handle("/list", h.onList)
	b.Handle("/cancel", h.onCancel)
	b.Handle("/delete", h.onDelete)
	b.Handle(telebot.OnPhoto, h.onPhoto)
	b.Handle(telebot.OnText, h.onText)
	b.Handle(telebot.OnCallback, h.onCallback)
}

type handlers struct {
	ctx    context.Context
	flow   RegistrationFlow
	logger *logrus.Entry
}

func chatUserID(c telebot.Context) string {
	return strconv.FormatInt(c.Chat().ID, 10)
}

func (h *handlers) log(c telebot.Context, handler string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{"handler": handler, "user_id": chatUserID(c)})
}

func (h *handlers) onStart(c telebot.Context) error {
	logCtx := h.log(c, "/start")
	if _, err := h.flow.CurrentState(h.ctx, chatUserID(c)); err != nil {
		logCtx.WithError(err).Error("Failed to load user for /start")
		return c.Send(genericErrorReply)
	}
	logCtx.Info("User started the bot")
	return c.Send(startText)
}

func (h *handlers) onList(c telebot.Context) error {
	plantings, err := h.flow.ListPlantings(h.ctx, chatUserID(c))
	if err != nil {
		h.log(c, "/list").WithError(err).Error("Failed to list plantings")
		return c.Send(genericErrorReply)
	}
	return c.Send(listText(plantings))
}

func (h *handlers) onCancel(c telebot.Context) error {
	if err := h.flow.Cancel(h.ctx, chatUserID(c)); err != nil {
		h.log(c, "/cancel").WithError(err).Error("Failed to cancel registration")
		return c.Send(genericErrorReply)
	}
	return c.Send("登録を中止しました。")
}

func (h *handlers) onDelete(c telebot.Context) error {
	plantings, err := h.flow.ListPlantings(h.ctx, chatUserID(c))
	if err != nil {
		h.log(c, "/delete").WithError(err).Error("Failed to list plantings")
		return c.Send(genericErrorReply)
	}
	if len(plantings) == 0 {
		return c.Send(listText(plantings))
	}
	return c.Send("削除する植物を選んでください。", deleteMarkup(plantings))
}

func (h *handlers) onPhoto(c telebot.Context) error {
	logCtx := h.log(c, "photo")
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}

	rc, err := c.Bot().File(&photo.File)
	if err != nil {
		logCtx.WithError(err).Error("Failed to download photo")
		return c.Send(genericErrorReply)
	}
	image, err := io.ReadAll(io.LimitReader(rc, maxPhotoBytes))
	rc.Close()
	if err != nil {
		logCtx.WithError(err).Error("Failed to read photo")
		return c.Send(genericErrorReply)
	}

	if err := c.Send("画像を受け取りました。現在画像の処理を行っています..."); err != nil {
		logCtx.WithError(err).Warn("Failed to acknowledge photo")
	}

	p, result, err := h.flow.HandlePhoto(h.ctx, chatUserID(c), image)
	text, markup := photoReply(p, result, err)
	if err != nil && !errors.Is(err, app.ErrLowConfidence) && !errors.Is(err, app.ErrUnknownPlant) {
		logCtx.WithError(err).Error("Failed to handle photo")
	}
	if markup != nil {
		return c.Send(text, markup)
	}
	return c.Send(text)
}

func (h *handlers) onText(c telebot.Context) error {
	userID := chatUserID(c)
	logCtx := h.log(c, "text")

	state, err := h.flow.CurrentState(h.ctx, userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load conversation state")
		return c.Send(genericErrorReply)
	}

	switch state.(type) {
	case user.AwaitingDeviceID:
		pl, err := h.flow.SubmitDeviceID(h.ctx, userID, c.Text())
		if err != nil && !errors.Is(err, app.ErrInvalidDeviceID) && !errors.Is(err, app.ErrAlreadyRegistered) {
			logCtx.WithError(err).Error("Failed to register planting")
		}
		return c.Send(deviceIDReply(pl, err))
	case user.AwaitingConfirmation:
		return c.Send(awaitConfirmationText)
	default:
		return c.Send(helpText)
	}
}

func (h *handlers) onCallback(c telebot.Context) error {
	userID := chatUserID(c)
	data := strings.TrimSpace(c.Callback().Data)
	logCtx := h.log(c, "callback").WithField("data", data)

	switch {
	case data == callbackConfirmYes || data == callbackConfirmNo:
		p, err := h.flow.Confirm(h.ctx, userID, data == callbackConfirmYes)
		if err != nil && !errors.Is(err, app.ErrNoPendingRegistration) {
			logCtx.WithError(err).Error("Failed to confirm registration")
		}
		_ = c.Respond()
		return c.Send(confirmReply(p, err))

	case strings.HasPrefix(data, callbackDeletePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, callbackDeletePrefix), 10, 64)
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid planting id in callback %q: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "不正な操作です。"})
		}
		pl, err := h.flow.DeletePlanting(h.ctx, userID, id)
		if err != nil && !errors.Is(err, app.ErrPlantingNotFound) {
			logCtx.WithError(err).Error("Failed to delete planting")
		}
		_ = c.Respond()
		return c.Send(deleteReply(pl, err))
	}

	c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
	return c.Respond(&telebot.CallbackResponse{Text: "不明な操作です。"})
}

func photoReply(p *plant.Plant, result *classifier.Result, err error) (string, *telebot.ReplyMarkup) {
	switch {
	case errors.Is(err, app.ErrLowConfidence):
		return "植物を判定できませんでした。別の角度から撮影した写真を送ってください。", nil
	case errors.Is(err, app.ErrUnknownPlant):
		return "この植物はまだ登録できません。", nil
	case err != nil:
		return genericErrorReply, nil
	}
	text := fmt.Sprintf("この植物は「%s」ですか？（確信度 %.0f%%）", p.DisplayName(), result.Confidence*100)
	return text, confirmMarkup()
}

func confirmMarkup() *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{{
		{Text: "はい", Data: callbackConfirmYes},
		{Text: "いいえ", Data: callbackConfirmNo},
	}}}
}

func confirmReply(p *plant.Plant, err error) string {
	switch {
	case errors.Is(err, app.ErrNoPendingRegistration):
		return "確認待ちの登録はありません。植物の写真を送ってください。"
	case err != nil:
		return genericErrorReply
	case p == nil:
		return "登録を中止しました。別の写真を送ってください。"
	}
	return fmt.Sprintf("「%s」を登録します。%s", p.DisplayName(), awaitDeviceIDText)
}

func deviceIDReply(pl *planting.Planting, err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidDeviceID):
		return "センサーの番号は0〜7の数字で入力してください。"
	case errors.Is(err, app.ErrAlreadyRegistered):
		return "この植物はすでにそのセンサーで登録されています。"
	case errors.Is(err, app.ErrNoPendingRegistration):
		return helpText
	case err != nil:
		return genericErrorReply
	}
	return fmt.Sprintf("「%s」をセンサー%dで登録しました。水やりが必要になったらお知らせします。", pl.PlantName, pl.DeviceID)
}

func deleteMarkup(plantings []*planting.Planting) *telebot.ReplyMarkup {
	rows := make([][]telebot.InlineButton, 0, len(plantings))
	for _, pl := range plantings {
		rows = append(rows, []telebot.InlineButton{{
			Text: fmt.Sprintf("%s（センサー%d）", pl.PlantName, pl.DeviceID),
			Data: callbackDeletePrefix + strconv.FormatInt(pl.ID, 10),
		}})
	}
	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

func deleteReply(pl *planting.Planting, err error) string {
	switch {
	case errors.Is(err, app.ErrPlantingNotFound):
		return "その登録は見つかりませんでした。"
	case err != nil:
		return genericErrorReply
	}
	return fmt.Sprintf("「%s」（センサー%d）の登録を削除しました。", pl.PlantName, pl.DeviceID)
}

func listText(plantings []*planting.Planting) string {
	if len(plantings) == 0 {
		return "登録されている植物はありません。植物の写真を送って登録してください。"
	}
	var sb strings.Builder
	sb.WriteString("登録済みの植物:\n")
	for _, pl := range plantings {
		fmt.Fprintf(&sb, "・%s（センサー%d）\n", pl.PlantName, pl.DeviceID)
	}
	return strings.TrimRight(sb.String(), "\n")
}
