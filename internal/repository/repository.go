// Package repository содержит реализации хранилища карт поверх внешнего
// табличного хранилища.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/walleai/walle-agent/internal/model"
)

// ErrCardIndexOutOfRange возвращается при адресации несуществующей позиции
// карты пользователя.
var ErrCardIndexOutOfRange = errors.New("card index out of range")

// CardStore описывает контракт хранилища карт.
//
// Карты адресуются позиционно: index — порядковый номер строки среди строк
// данного пользователя в порядке итерации хранилища. Контракт требует, чтобы
// порядок строк пользователя был стабилен и совпадал с порядком вставки.
// Ручные правки таблицы или параллельные писатели нарушают адресацию и
// приводят к изменению чужой карты — это осознанная хрупкость формата
// (см. DESIGN.md). Каждая строка дополнительно несёт стабильный card_id,
// который записывается всегда и позволяет перейти на адресацию по
// идентификатору без смены схемы.
//
// Бенефиты карт хранилищем не сохраняются и при загрузке не
// восстанавливаются.
type CardStore interface {
	Close() error
	Load(ctx context.Context, userID string) (*model.UserProfile, error)
	Save(ctx context.Context, userID string, card model.CreditCard) error
	Update(ctx context.Context, userID string, index int, card model.CreditCard) error
	Delete(ctx context.Context, userID string, index int) error
}

// Колонки строки хранилища в фиксированном порядке.
const (
	colUserID = iota
	colBank
	colCardName
	colNetwork
	colLastFour
	colOpenDate
	colCardID
	columnCount
)

// normalizeCard подставляет значения по умолчанию перед записью.
func normalizeCard(card model.CreditCard) model.CreditCard {
	if card.LastFour == "" {
		card.LastFour = "0000"
	}
	if card.Network == "" {
		card.Network = model.NetworkUnknown
	}
	return card
}

// rowFromCard собирает строку хранилища из карты.
func rowFromCard(userID string, card model.CreditCard) []any {
	card = normalizeCard(card)
	return []any{
		userID,
		card.Bank,
		card.Name,
		string(card.Network),
		card.LastFour,
		card.OpenDate,
		card.ID,
	}
}

// cardFromRow восстанавливает карту из строки хранилища. Отсутствующие
// хвостовые ячейки (включая open_date и card_id) считаются пустыми.
func cardFromRow(row []any) model.CreditCard {
	return normalizeCard(model.CreditCard{
		ID:       cellString(row, colCardID),
		Bank:     cellString(row, colBank),
		Name:     cellString(row, colCardName),
		Network:  model.Network(cellString(row, colNetwork)),
		LastFour: cellString(row, colLastFour),
		OpenDate: cellString(row, colOpenDate),
	})
}

func cellString(row []any, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return fmt.Sprint(row[idx])
}

// userRowNumbers возвращает абсолютные номера строк листа (нумерация с 1,
// первая строка — заголовок), принадлежащих пользователю, в порядке
// итерации. Сравнение user_id строгое, с учётом регистра.
func userRowNumbers(values [][]any, userID string) []int {
	var rows []int
	for i, row := range values {
		if i == 0 {
			continue // заголовок
		}
		if cellString(row, colUserID) == userID {
			rows = append(rows, i+1)
		}
	}
	return rows
}
