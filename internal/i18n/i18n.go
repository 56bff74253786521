// Package i18n holds the user-facing text of the board in English and
// Russian.
package i18n

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/madhatter5501/noteboard/kanban"
)

// Supported lists the languages with a translation, default first.
var Supported = []language.Tag{language.English, language.Russian}

var matcher = language.NewMatcher(Supported)

// Message keys outside the error kinds.
const (
	KeyBadRequest   = "bad_request"
	KeyAddCard      = "ui.add_card"
	KeyAddItem      = "ui.add_item"
	KeyRemoveCard   = "ui.remove_card"
	KeyCompletedOn  = "ui.completed_on"
	KeyCardCount    = "ui.card_count"
	KeyBoardLocked  = "ui.board_locked"
	KeyCardAdded    = "cli.card_added"
	KeyCardRemoved  = "cli.card_removed"
	KeyCardMoved    = "cli.card_moved"
	KeyItemToggled  = "cli.item_toggled"
	KeyNoCards      = "cli.no_cards"
	KeyBoardHeading = "cli.heading"
)

type entry struct {
	key string
	msg catalog.Message
}

var english = []entry{
	{kanban.KindCapacity, catalog.String("The maximum number of cards or items has been reached.")},
	{kanban.KindLocked, catalog.String(`The "In process" column already holds the maximum number of cards.`)},
	{kanban.KindTerminal, catalog.String(`Cards in "Done" can no longer be changed.`)},
	{kanban.KindNotFound, catalog.String("The card or item does not exist.")},
	{kanban.KindPersistence, catalog.String("The board could not be saved.")},
	{kanban.KindInvalid, catalog.String("The card cannot be moved there.")},
	{kanban.KindNotEditable, catalog.String("Switch the item to editing first.")},
	{kanban.KindInternal, catalog.String("Something went wrong.")},
	{KeyBadRequest, catalog.String("The request is invalid.")},

	{"column." + string(kanban.ColumnNew), catalog.String("New")},
	{"column." + string(kanban.ColumnInProgress), catalog.String("In process")},
	{"column." + string(kanban.ColumnCompleted), catalog.String("Done")},

	{KeyAddCard, catalog.String("Add note")},
	{KeyAddItem, catalog.String("Add item")},
	{KeyRemoveCard, catalog.String("Delete note")},
	{KeyCompletedOn, catalog.String("Completed: %s")},
	{KeyCardCount, plural.Selectf(1, "%d",
		plural.One, "%d card",
		plural.Other, "%d cards")},
	{KeyBoardLocked, catalog.String(`"New" is locked until a card leaves "In process".`)},

	{KeyCardAdded, catalog.String("Added card %s")},
	{KeyCardRemoved, catalog.String("Removed card %d from %s")},
	{KeyCardMoved, catalog.String("Moved card %s to %s")},
	{KeyItemToggled, catalog.String("Toggled item %d of card %s")},
	{KeyNoCards, catalog.String("(empty)")},
	{KeyBoardHeading, catalog.String("%s (%d/%s)")},
}

var russian = []entry{
	{kanban.KindCapacity, catalog.String("Достигнуто максимальное количество карточек или пунктов.")},
	{kanban.KindLocked, catalog.String(`Столбец "In process" уже содержит максимальное количество карточек.`)},
	{kanban.KindTerminal, catalog.String(`Нельзя изменять карточки в столбце "Done".`)},
	{kanban.KindNotFound, catalog.String("Карточка или пункт не найдены.")},
	{kanban.KindPersistence, catalog.String("Не удалось сохранить доску.")},
	{kanban.KindInvalid, catalog.String("Карточку нельзя переместить в этот столбец.")},
	{kanban.KindNotEditable, catalog.String("Сначала переключите пункт в режим редактирования.")},
	{kanban.KindInternal, catalog.String("Что-то пошло не так.")},
	{KeyBadRequest, catalog.String("Некорректный запрос.")},

	{"column." + string(kanban.ColumnNew), catalog.String("New")},
	{"column." + string(kanban.ColumnInProgress), catalog.String("В процессе")},
	{"column." + string(kanban.ColumnCompleted), catalog.String("Done")},

	{KeyAddCard, catalog.String("Добавить заметку")},
	{KeyAddItem, catalog.String("Добавить пункт")},
	{KeyRemoveCard, catalog.String("Удалить заметку")},
	{KeyCompletedOn, catalog.String("Дата завершения: %s")},
	{KeyCardCount, plural.Selectf(1, "%d",
		plural.One, "%d карточка",
		plural.Few, "%d карточки",
		plural.Other, "%d карточек")},
	{KeyBoardLocked, catalog.String(`Столбец "New" заблокирован, пока в "In process" нет места.`)},

	{KeyCardAdded, catalog.String("Добавлена карточка %s")},
	{KeyCardRemoved, catalog.String("Удалена карточка %d из %s")},
	{KeyCardMoved, catalog.String("Карточка %s перемещена в %s")},
	{KeyItemToggled, catalog.String("Пункт %d карточки %s переключён")},
	{KeyNoCards, catalog.String("(пусто)")},
	{KeyBoardHeading, catalog.String("%s (%d/%s)")},
}

var cat = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, e := range english {
		mustSet(b, language.English, e)
	}
	for _, e := range russian {
		mustSet(b, language.Russian, e)
	}
	return b
}

func mustSet(b *catalog.Builder, tag language.Tag, e entry) {
	if err := b.Set(tag, e.key, e.msg); err != nil {
		panic("i18n: " + e.key + ": " + err.Error())
	}
}

// Match returns the best supported language for an Accept-Language header
// or a plain tag such as "ru". Unknown input yields English.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// Localizer renders messages in one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
	upper   cases.Caser
}

// New returns a localizer for tag, which should be one of Supported.
func New(tag language.Tag) *Localizer {
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(cat)),
		upper:   cases.Upper(tag),
	}
}

// For matches prefs and returns a localizer for the result.
func For(prefs ...string) *Localizer {
	return New(Match(prefs...))
}

// Tag returns the localizer's language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Text renders a message key with arguments.
func (l *Localizer) Text(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Kind renders the message for an error kind.
func (l *Localizer) Kind(kind string) string {
	return l.printer.Sprintf(kind)
}

// Error renders the message for err's kind.
func (l *Localizer) Error(err error) string {
	return l.Kind(kanban.Kind(err))
}

// Column renders a column title.
func (l *Localizer) Column(id kanban.ColumnID) string {
	return l.printer.Sprintf("column." + string(id))
}

// Heading upper-cases s using the language's casing rules.
func (l *Localizer) Heading(s string) string {
	return l.upper.String(s)
}
