// Package model содержит доменные сущности агента Walle.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RefreshPeriod описывает периодичность обновления лимита бенефита.
type RefreshPeriod string

const (
	RefreshMonthly    RefreshPeriod = "monthly"
	RefreshQuarterly  RefreshPeriod = "quarterly"
	RefreshSemiAnnual RefreshPeriod = "semi-annual"
	RefreshAnnual     RefreshPeriod = "annual"
)

// Network описывает платёжную систему карты.
type Network string

const (
	NetworkVisa       Network = "Visa"
	NetworkMastercard Network = "Mastercard"
	NetworkAmex       Network = "Amex"
	NetworkDiscover   Network = "Discover"
	NetworkUnknown    Network = "Unknown"
)

// Networks перечисляет допустимые значения платёжных систем.
var Networks = []Network{NetworkVisa, NetworkMastercard, NetworkAmex, NetworkDiscover, NetworkUnknown}

// Benefit описывает отдельный бенефит кредитной карты (например, $15 Uber Cash).
type Benefit struct {
	Name          string        `json:"name"`
	Category      string        `json:"category"`
	Description   string        `json:"description"`
	RefreshPeriod RefreshPeriod `json:"refresh_period"`
	TotalAmount   float64       `json:"total_amount"`
	UsedAmount    float64       `json:"used_amount"`
}

// Remaining возвращает остаток лимита бенефита. Вычисляется при каждом
// обращении и никогда не бывает отрицательным.
func (b Benefit) Remaining() float64 {
	rem := b.TotalAmount - b.UsedAmount
	if rem < 0 {
		return 0
	}
	return rem
}

// CreditCard описывает одну кредитную карту пользователя.
// ID — стабильный идентификатор, присваиваемый при создании; адресация карт
// в хранилище при этом остаётся позиционной (см. пакет repository).
type CreditCard struct {
	ID       string    `json:"id,omitempty"`
	Bank     string    `json:"bank"`
	Name     string    `json:"name"`
	Network  Network   `json:"network"`
	LastFour string    `json:"last_four"`
	OpenDate string    `json:"open_date"`
	Benefits []Benefit `json:"benefits"`
}

// AddBenefit добавляет бенефит в конец списка карты.
func (c *CreditCard) AddBenefit(b Benefit) {
	c.Benefits = append(c.Benefits, b)
}

// PromptLine возвращает строку карты для контекста LLM. Дата открытия
// включается только если она известна.
func (c CreditCard) PromptLine() string {
	dateInfo := ""
	if c.OpenDate != "" {
		dateInfo = ", Opened: " + c.OpenDate
	}
	return fmt.Sprintf("- %s %s (Network: %s%s)", c.Bank, c.Name, c.Network, dateInfo)
}

// String возвращает короткое человекочитаемое представление карты.
func (c CreditCard) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Bank, c.Name, c.LastFour)
}

// UserProfile описывает профиль пользователя: идентификатор и упорядоченный
// список карт. Порядок карт соответствует порядку добавления.
type UserProfile struct {
	UserID string       `json:"user_id"`
	Cards  []CreditCard `json:"cards"`
}

// NewUserProfile создаёт пустой профиль пользователя.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{UserID: userID}
}

// AddCard добавляет карту в конец кошелька.
func (p *UserProfile) AddCard(card CreditCard) {
	p.Cards = append(p.Cards, card)
}

// Summary возвращает детерминированное текстовое описание профиля,
// которое передаётся LLM как контекст пользователя. Строки следуют
// порядку добавления карт и бенефитов.
func (p *UserProfile) Summary() string {
	if len(p.Cards) == 0 {
		return "User has no cards."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User holds %d cards:", len(p.Cards))
	for _, card := range p.Cards {
		b.WriteString("\n")
		b.WriteString(card.PromptLine())
		for _, ben := range card.Benefits {
			fmt.Fprintf(&b, "\n  * [Benefit] %s: $%s left (%s)",
				ben.Name, formatAmount(ben.Remaining()), ben.RefreshPeriod)
		}
	}
	return b.String()
}

// formatAmount форматирует сумму без хвостовых нулей: 15, а не 15.00.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DemoProfile возвращает демонстрационный кошелёк с заполненными бенефитами.
// Это единственный источник бенефитов с суммами: хранилище карт бенефиты
// не сохраняет.
func DemoProfile(userID string) *UserProfile {
	p := NewUserProfile(userID)

	flex := CreditCard{
		Bank:     "Chase",
		Name:     "Freedom Flex",
		Network:  NetworkMastercard,
		LastFour: "1234",
	}
	flex.AddBenefit(Benefit{
		Name:          "Quarterly 5%",
		Category:      "rotation",
		Description:   "5% cashback on rotating categories",
		RefreshPeriod: RefreshQuarterly,
		TotalAmount:   1500.0,
	})
	p.AddCard(flex)

	plat := CreditCard{
		Bank:     "Amex",
		Name:     "Platinum",
		Network:  NetworkAmex,
		LastFour: "9999",
	}
	plat.AddBenefit(Benefit{
		Name:          "Uber Cash",
		Category:      "transport",
		Description:   "$15 monthly credit",
		RefreshPeriod: RefreshMonthly,
		TotalAmount:   15.0,
	})
	plat.AddBenefit(Benefit{
		Name:          "Airline Fee",
		Category:      "travel",
		Description:   "$200 annual incidental credit",
		RefreshPeriod: RefreshAnnual,
		TotalAmount:   200.0,
	})
	p.AddCard(plat)

	return p
}
