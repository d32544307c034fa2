package markup

import (
	"strings"

	tele "gopkg.in/telebot.v3"
)

func Markup() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{}
}

func InlineMarkup(rows ...tele.Row) *tele.ReplyMarkup {
	m := Markup()
	m.Inline(rows...)
	return m
}

func Row(many ...tele.Btn) tele.Row {
	return many
}

func Text(text string) tele.Btn {
	return tele.Btn{Text: text}
}

// Data builds an inline button whose callback payload is the unique
// plus "|"-joined args. Handlers read the args back via c.Args().
func Data(text, unique string, data ...string) tele.Btn {
	return tele.Btn{
		Unique: unique,
		Text:   text,
		Data:   strings.Join(data, "|"),
	}
}

func URL(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}
