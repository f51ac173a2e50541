// internal/infra/telegram/bot_handlers.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hatm_bot/internal/app"
	"hatm_bot/internal/domain/hatm"
	"hatm_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotHandlers(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig, // For WebAppURL
	userService *app.UserService,
	hatmService *app.HatmService,
	baseLogger *logrus.Entry, // For contextual logging
) {
	commandLogger := baseLogger.WithField("handler_group", "bot_commands")

	b.Handle("/start", func(c telebot.Context) error {
		sender := c.Sender()
		logCtx := commandLogger.WithField("command", "/start").WithField("sender_id", sender.ID)
		logCtx.Info("Processing /start command")

		u, err := userService.GetOrCreate(ctx, sender.ID, sender.Username, sender.FirstName)
		if err != nil {
			logCtx.WithError(err).Error("Failed to register user on /start")
			return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
		}

		markup := &telebot.ReplyMarkup{
			InlineKeyboard: [][]telebot.InlineButton{
				{{Text: "📖 Открыть приложение", WebApp: &telebot.WebApp{URL: cfg.WebAppURL}}},
				{{Text: "📋 Мои джузы", Data: "my_juzs"}},
				{{Text: "⚠️ Мои долги", Data: "my_debts"}},
			},
		}

		name := u.DisplayName()
		if name == "" {
			name = "дорогой брат/сестра"
		}

		return c.Send(fmt.Sprintf(
			"Ассаляму алейкум, %s! 🌙\n\n"+
				"Добро пожаловать в бот для коллективного чтения Корана (хатм).\n\n"+
				"С этим ботом вы можете:\n"+
				"• Создавать группы для совместного хатма\n"+
				"• Распределять джузы между участниками\n"+
				"• Отслеживать прогресс чтения\n"+
				"• Получать напоминания о джузах\n\n"+
				"Нажмите кнопку ниже, чтобы открыть приложение:",
			name,
		), markup)
	})

	b.Handle("/myjuzs", func(c telebot.Context) error {
		logCtx := commandLogger.WithField("command", "/myjuzs").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /myjuzs command")
		return sendActiveJuzs(ctx, c, userService, hatmService, logCtx)
	})

	b.Handle("/debts", func(c telebot.Context) error {
		logCtx := commandLogger.WithField("command", "/debts").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /debts command")
		return sendDebts(ctx, c, userService, hatmService, logCtx)
	})

	callbackLogger := baseLogger.WithField("handler_group", "bot_callbacks")

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		logCtx := callbackLogger.WithField("sender_id", c.Sender().ID).WithField("callback_data", data)

		switch {
		case data == "my_juzs":
			if err := c.Respond(); err != nil {
				return err
			}
			return sendActiveJuzs(ctx, c, userService, hatmService, logCtx)

		case data == "my_debts":
			if err := c.Respond(); err != nil {
				return err
			}
			return sendDebts(ctx, c, userService, hatmService, logCtx)

		case strings.HasPrefix(data, "complete_juz:"):
			return handleCompleteJuz(ctx, c, data, userService, hatmService, logCtx)
		}

		logCtx.Warn("Unhandled callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Неизвестное действие."})
	})
}

func sendActiveJuzs(
	ctx context.Context,
	c telebot.Context,
	userService *app.UserService,
	hatmService *app.HatmService,
	logCtx *logrus.Entry,
) error {
	u, err := userService.GetByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		if err == app.ErrUserNotFound {
			return c.Send("Вы еще не зарегистрированы. Используйте /start")
		}
		logCtx.WithError(err).Error("Failed to resolve user")
		return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
	}

	juzs, err := hatmService.ListUserActiveJuzs(ctx, u.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list active juzs")
		return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
	}

	if len(juzs) == 0 {
		return c.Send(
			"У вас сейчас нет активных джузов для чтения.\n\n" +
				"Присоединитесь к группе и дождитесь начала хатма!",
		)
	}

	var text strings.Builder
	text.WriteString("📖 *Ваши текущие джузы:*\n\n")
	for _, j := range juzs {
		fmt.Fprintf(&text, "• Джуз %d\n", j.JuzNumber)
	}

	return c.Send(text.String(), &telebot.SendOptions{
		ParseMode:   telebot.ModeMarkdown,
		ReplyMarkup: completeButtons(juzs),
	})
}

func sendDebts(
	ctx context.Context,
	c telebot.Context,
	userService *app.UserService,
	hatmService *app.HatmService,
	logCtx *logrus.Entry,
) error {
	u, err := userService.GetByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		if err == app.ErrUserNotFound {
			return c.Send("Вы еще не зарегистрированы. Используйте /start")
		}
		logCtx.WithError(err).Error("Failed to resolve user")
		return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
	}

	debts, err := hatmService.ListUserDebts(ctx, u.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list debts")
		return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
	}

	if len(debts) == 0 {
		return c.Send("✨ У вас нет долгов! Машаллах!")
	}

	var text strings.Builder
	text.WriteString("⚠️ *Ваши долги:*\n\n")
	for _, j := range debts {
		fmt.Fprintf(&text, "• Джуз %d\n", j.JuzNumber)
	}
	fmt.Fprintf(&text, "\nВсего долгов: %d", len(debts))

	return c.Send(text.String(), &telebot.SendOptions{
		ParseMode:   telebot.ModeMarkdown,
		ReplyMarkup: completeButtons(debts),
	})
}

func handleCompleteJuz(
	ctx context.Context,
	c telebot.Context,
	data string,
	userService *app.UserService,
	hatmService *app.HatmService,
	logCtx *logrus.Entry,
) error {
	juzIDStr := strings.TrimPrefix(data, "complete_juz:")
	juzID, err := strconv.ParseInt(juzIDStr, 10, 64)
	if err != nil {
		logCtx.WithError(err).Warn("Invalid juz ID in callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки ответа."})
	}

	u, err := userService.GetByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		logCtx.WithError(err).Warn("Unregistered user tried to complete a juz")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка авторизации", ShowAlert: true})
	}

	juz, err := hatmService.GetJuzByID(ctx, juzID)
	if err != nil {
		if err == app.ErrJuzNotFound {
			return c.Respond(&telebot.CallbackResponse{Text: "Джуз не найден", ShowAlert: true})
		}
		logCtx.WithError(err).Error("Failed to load juz")
		return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка."})
	}

	if !juz.UserID.Valid || juz.UserID.Int64 != u.ID {
		return c.Respond(&telebot.CallbackResponse{Text: "Это не ваш джуз", ShowAlert: true})
	}
	if juz.Status == hatm.JuzCompleted {
		return c.Respond(&telebot.CallbackResponse{Text: "Джуз уже отмечен как прочитанный", ShowAlert: true})
	}

	juz, err = hatmService.MarkJuzCompleted(ctx, juz.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to mark juz completed")
		return c.Respond(&telebot.CallbackResponse{Text: "Произошла ошибка."})
	}

	hatmCompleted, err := hatmService.CheckAndComplete(ctx, juz.HatmID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check hatm completion")
	}

	if err := c.Respond(&telebot.CallbackResponse{
		Text:      "Джуз отмечен как прочитанный! Баракаллаху фикум! 🤲",
		ShowAlert: true,
	}); err != nil {
		return err
	}

	followUp := "Продолжайте в том же духе!"
	if hatmCompleted {
		followUp = "🎉 Хатм завершен! Аллахумма баракалана!"
	}
	return c.Edit(fmt.Sprintf("✅ Джуз %d отмечен как прочитанный!\n\n%s", juz.JuzNumber, followUp))
}

func completeButtons(juzs []*hatm.JuzAssignment) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	for _, j := range juzs {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []telebot.InlineButton{
			{
				Text: fmt.Sprintf("✅ Джуз %d прочитан", j.JuzNumber),
				Data: "complete_juz:" + strconv.FormatInt(j.ID, 10),
			},
		})
	}
	return markup
}
