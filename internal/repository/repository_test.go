package repository

import (
	"testing"

	"github.com/walleai/walle-agent/internal/model"
)

// sheetValues собирает содержимое листа: заголовок и строки карт.
func sheetValues(rows ...[]any) [][]any {
	values := [][]any{
		{"user_id", "bank", "card_name", "network", "last_four", "open_date", "card_id"},
	}
	return append(values, rows...)
}

func TestUserRowNumbers_InterleavedUsers(t *testing.T) {
	values := sheetValues(
		[]any{"a@x.com", "Chase", "Freedom Flex", "Mastercard", "1234", "", "id-a1"},
		[]any{"b@x.com", "Amex", "Gold", "Amex", "5678", "", "id-b1"},
		[]any{"a@x.com", "Amex", "Platinum", "Amex", "9999", "2025-06-01", "id-a2"},
		[]any{"b@x.com", "Citi", "Premier", "Mastercard", "1111", "", "id-b2"},
		[]any{"a@x.com", "Citi", "Custom Cash", "Mastercard", "2222", "", "id-a3"},
	)

	// Нумерация листа с 1, первая строка — заголовок.
	rowsA := userRowNumbers(values, "a@x.com")
	if len(rowsA) != 3 || rowsA[0] != 2 || rowsA[1] != 4 || rowsA[2] != 6 {
		t.Fatalf("rows for a@x.com = %v, want [2 4 6]", rowsA)
	}

	rowsB := userRowNumbers(values, "b@x.com")
	if len(rowsB) != 2 || rowsB[0] != 3 || rowsB[1] != 5 {
		t.Fatalf("rows for b@x.com = %v, want [3 5]", rowsB)
	}

	// Удаление карты index=1 пользователя A должно указывать на строку 4 —
	// вторую строку A, не трогая строки B.
	if rowsA[1] != 4 {
		t.Fatalf("delete(a, 1) targets row %d, want 4", rowsA[1])
	}
}

func TestUserRowNumbers_CaseSensitiveMatch(t *testing.T) {
	values := sheetValues(
		[]any{"Tony@stark.com", "Chase", "Freedom Flex", "Mastercard", "1234", "", ""},
	)

	if rows := userRowNumbers(values, "tony@stark.com"); rows != nil {
		t.Fatalf("user_id match must be case-sensitive, got rows %v", rows)
	}
}

func TestCardFromRow_RoundTrip(t *testing.T) {
	card := model.CreditCard{
		ID:       "id-1",
		Bank:     "Chase",
		Name:     "Sapphire Preferred",
		Network:  model.NetworkVisa,
		LastFour: "4321",
		OpenDate: "2023-07-01",
	}

	got := cardFromRow(rowFromCard("a@x.com", card))

	if got.ID != card.ID || got.Bank != card.Bank || got.Name != card.Name ||
		got.Network != card.Network || got.LastFour != card.LastFour || got.OpenDate != card.OpenDate {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, card)
	}
}

func TestCardFromRow_Defaults(t *testing.T) {
	// Короткая строка без open_date и card_id: хвостовые ячейки считаются пустыми.
	got := cardFromRow([]any{"a@x.com", "Chase", "Freedom Flex", "", ""})

	if got.LastFour != "0000" {
		t.Fatalf("LastFour = %q, want default 0000", got.LastFour)
	}
	if got.Network != model.NetworkUnknown {
		t.Fatalf("Network = %q, want Unknown", got.Network)
	}
	if got.OpenDate != "" {
		t.Fatalf("OpenDate = %q, want empty", got.OpenDate)
	}
	if len(got.Benefits) != 0 {
		t.Fatalf("benefits are not persisted, got %v", got.Benefits)
	}
}

func TestRowFromCard_ColumnOrder(t *testing.T) {
	card := model.CreditCard{
		ID:       "id-9",
		Bank:     "Amex",
		Name:     "Platinum",
		Network:  model.NetworkAmex,
		LastFour: "9999",
		OpenDate: "2025-06-01",
	}

	row := rowFromCard("a@x.com", card)

	want := []any{"a@x.com", "Amex", "Platinum", "Amex", "9999", "2025-06-01", "id-9"}
	if len(row) != columnCount {
		t.Fatalf("row has %d columns, want %d", len(row), columnCount)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("column %d = %v, want %v", i, row[i], want[i])
		}
	}
}
