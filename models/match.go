package models

// BracketType определяет, к какой части сетки относится матч.
type BracketType string

const (
	BracketWinners    BracketType = "winners"
	BracketLosers     BracketType = "losers"
	BracketGrandFinal BracketType = "grand_final"
	BracketReset      BracketType = "reset"
)

// SlotKind определяет, откуда слот матча получает участника.
type SlotKind string

const (
	SlotItem     SlotKind = "item"      // элемент, поставленный при создании сетки
	SlotWinnerOf SlotKind = "winner_of" // победитель SourceMatchID
	SlotLoserOf  SlotKind = "loser_of"  // проигравший SourceMatchID
	SlotBye      SlotKind = "bye"
)

// Slot: одна из двух позиций матча.
// ItemID заполняется, когда слот разрешен; слот bye разрешается без элемента.
type Slot struct {
	Kind          SlotKind `json:"kind"`
	ItemID        string   `json:"item_id,omitempty"`
	SourceMatchID string   `json:"source_match_id,omitempty"`
	IsBye         bool     `json:"is_bye,omitempty"`
}

// Resolved сообщает, занят ли слот окончательно (элементом или bye).
func (s Slot) Resolved() bool {
	return s.ItemID != "" || s.IsBye
}

// Destination указывает слот, куда участник переходит после матча.
type Destination struct {
	MatchID string `json:"match_id"`
	Slot    int    `json:"slot"`
}

// Match: узел сетки. Матчи ссылаются друг на друга только по id.
type Match struct {
	ID        string      `json:"id"`
	Bracket   BracketType `json:"bracket"`
	Round     int         `json:"round"`
	Order     int         `json:"order"`
	Stage     int         `json:"stage"`
	Slots     [2]Slot     `json:"slots"`
	WinnerID  string      `json:"winner_id,omitempty"`
	LoserID   string      `json:"loser_id,omitempty"`
	Completed bool        `json:"completed"`
	BattleID  string      `json:"battle_id,omitempty"`

	// nil означает, что проигравший выбывает (или победитель не идет дальше).
	WinnerTo *Destination `json:"winner_to,omitempty"`
	LoserTo  *Destination `json:"loser_to,omitempty"`
}

// ItemIDs возвращает участников обоих слотов (пустая строка для неразрешенного слота или bye).
func (m *Match) ItemIDs() (string, string) {
	return m.Slots[0].ItemID, m.Slots[1].ItemID
}

// HasItem сообщает, занимает ли itemID один из слотов матча.
func (m *Match) HasItem(itemID string) bool {
	return itemID != "" && (m.Slots[0].ItemID == itemID || m.Slots[1].ItemID == itemID)
}
