// internal/infra/telegram/notifier.go
package telegram

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hatm_bot/internal/domain/group"
	"hatm_bot/internal/domain/hatm"
	domaintg "hatm_bot/internal/domain/telegram"
	"hatm_bot/internal/domain/user"

	"gopkg.in/telebot.v3"
)

// Notifier delivers hatm lifecycle messages to participants in their
// personal chats. It implements the app.Notifier interface.
type Notifier struct {
	client domaintg.Client
}

func NewNotifier(client domaintg.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) JuzsAssigned(u *user.User, h *hatm.Hatm, g *group.Group, juzs []*hatm.JuzAssignment) error {
	markup := &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{
			{{Text: "📋 Мои джузы", Data: "my_juzs"}},
		},
	}

	text := fmt.Sprintf(
		"📖 *Новый хатм начат!*\n\n"+
			"Группа: %s\n"+
			"Срок: %d дн.\n\n"+
			"Вам назначены джузы: *%s*\n\n"+
			"Да поможет вам Аллах в чтении Корана! 🤲",
		g.Name, h.DurationDays, juzNumbersList(juzs),
	)

	return n.client.SendMessage(u.TelegramID, text, &telebot.SendOptions{
		ParseMode:   telebot.ModeMarkdown,
		ReplyMarkup: markup,
	})
}

func (n *Notifier) HatmCompleted(u *user.User, h *hatm.Hatm, g *group.Group) error {
	text := fmt.Sprintf(
		"🎉 *Хатм завершен!*\n\n"+
			"Группа: %s\n\n"+
			"Аллахумма баракалана! Хатм группы успешно завершен!\n"+
			"Баракаллаху фикум всем участникам! 🤲",
		g.Name,
	)

	return n.client.SendMessage(u.TelegramID, text, &telebot.SendOptions{
		ParseMode: telebot.ModeMarkdown,
	})
}

func (n *Notifier) DebtsCreated(u *user.User, juzs []*hatm.JuzAssignment) error {
	markup := &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{
			{{Text: "⚠️ Мои долги", Data: "my_debts"}},
		},
	}

	text := fmt.Sprintf(
		"⚠️ *У вас появились долги*\n\n"+
			"Хатм завершился, но у вас остались непрочитанные джузы: *%s*\n\n"+
			"Вы можете закрыть их в любое время. 📖",
		juzNumbersList(juzs),
	)

	return n.client.SendMessage(u.TelegramID, text, &telebot.SendOptions{
		ParseMode:   telebot.ModeMarkdown,
		ReplyMarkup: markup,
	})
}

func (n *Notifier) PendingReminder(u *user.User, h *hatm.Hatm, juzs []*hatm.JuzAssignment, daysLeft int) error {
	markup := &telebot.ReplyMarkup{}
	for _, j := range juzs {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []telebot.InlineButton{
			{
				Text: fmt.Sprintf("✅ Джуз %d прочитан", j.JuzNumber),
				Data: "complete_juz:" + strconv.FormatInt(j.ID, 10),
			},
		})
	}

	text := fmt.Sprintf(
		"⏰ *Напоминание*\n\n"+
			"До окончания хатма осталось: %d дн.\n\n"+
			"У вас есть непрочитанные джузы: *%s*\n\n"+
			"Не забудьте прочитать их вовремя! 📖",
		daysLeft, juzNumbersList(juzs),
	)

	return n.client.SendMessage(u.TelegramID, text, &telebot.SendOptions{
		ParseMode:   telebot.ModeMarkdown,
		ReplyMarkup: markup,
	})
}

// juzNumbersList renders a sorted "1, 5, 12" list of juz numbers.
func juzNumbersList(juzs []*hatm.JuzAssignment) string {
	numbers := make([]int, 0, len(juzs))
	for _, j := range juzs {
		numbers = append(numbers, j.JuzNumber)
	}
	sort.Ints(numbers)

	parts := make([]string, 0, len(numbers))
	for _, n := range numbers {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ", ")
}
