// Package prompt собирает системные инструкции для LLM и реализует
// календарную логику правила лимита заявок.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/walleai/walle-agent/internal/model"
)

// EligibilityWindowMonths — размер скользящего окна правила лимита заявок
// (правило вида Chase 5/24): учитываются карты, открытые в течение
// последних 24 месяцев.
const EligibilityWindowMonths = 24

const openDateLayout = "2006-01-02"

// MonthsSince возвращает число полных месяцев между датой открытия карты и
// сегодняшним днём. Второе значение false означает, что дата неизвестна или
// не распарсилась — такие карты исключаются из подсчёта, ошибки не возникает.
func MonthsSince(openDate string, today time.Time) (int, bool) {
	if openDate == "" {
		return 0, false
	}
	opened, err := time.Parse(openDateLayout, openDate)
	if err != nil {
		return 0, false
	}

	months := (today.Year()-opened.Year())*12 + int(today.Month()) - int(opened.Month())
	if today.Day() < opened.Day() {
		months--
	}
	if months < 0 {
		months = 0
	}
	return months, true
}

// CountRecentOpenings возвращает число карт профиля, открытых строго в
// пределах последних EligibilityWindowMonths месяцев. Карты с неизвестной
// датой открытия не учитываются: их нельзя проверить.
func CountRecentOpenings(p *model.UserProfile, today time.Time) int {
	count := 0
	for _, card := range p.Cards {
		months, ok := MonthsSince(card.OpenDate, today)
		if !ok {
			continue
		}
		if months <= EligibilityWindowMonths {
			count++
		}
	}
	return count
}

// BuildSystemInstruction собирает системную инструкцию для LLM из описания
// профиля, текущей даты и языка ответа. Инструкция содержит сегодняшнюю дату,
// поэтому пересобирается на каждый запрос и не кэшируется.
func BuildSystemInstruction(summary string, today time.Time, recentOpenings int, lang string) string {
	todayStr := today.Format(openDateLayout)

	var b strings.Builder
	b.WriteString("[SYSTEM INFO]\n")
	fmt.Fprintf(&b, "Current Date: %s\n", todayStr)
	b.WriteString("Role: You are Walle, an expert credit card agent.\n\n")

	b.WriteString("[USER CONTEXT]\n")
	b.WriteString(summary)
	b.WriteString("\n\n")

	b.WriteString("[TASK GUIDELINES]\n")
	b.WriteString("1. Only discuss benefits listed in User Context. NEVER invent benefits that are not in the summary above.\n")
	b.WriteString("2. Always SEARCH before answering about quarterly categories or other category-specific spending questions.\n")
	b.WriteString("3. For application-limit questions (e.g. Chase 5/24 Rule):\n")
	fmt.Fprintf(&b, "   - Today is %s.\n", todayStr)
	b.WriteString("   - Check the 'Opened' date of each card in User Context.\n")
	fmt.Fprintf(&b, "   - A card counts only if it was opened strictly within the last %d months (elapsed months <= %d).\n",
		EligibilityWindowMonths, EligibilityWindowMonths)
	b.WriteString("   - Cards without a known open date cannot be verified and are excluded from the count.\n")
	b.WriteString("   - Example: if today is 2026-01-02, a card opened on 2023-07-01 is 30 months old, so it does NOT count.\n")
	fmt.Fprintf(&b, "   - Based on the wallet above, %d card(s) currently count toward the limit.\n\n", recentOpenings)

	b.WriteString(languageDirective(lang))
	return b.String()
}

// BuildBenefitAnalysisPrompt собирает запрос для анализа истекающих бенефитов.
// Ответ модели ожидается в виде чистого JSON-списка напоминаний.
func BuildBenefitAnalysisPrompt(summary string, today time.Time, lang string) string {
	langInstruction := "Output in English."
	if lang == "zh" {
		langInstruction = "Output the 'benefit' and 'description' values in Simplified Chinese."
	}

	var b strings.Builder
	b.WriteString("Analyze the following credit cards held by the user:\n")
	b.WriteString(summary)
	b.WriteString("\n\nTask:\n")
	b.WriteString("Identify time-sensitive benefits (credits, free nights, allowances) that expire annually or monthly.\n")
	b.WriteString("Return a JSON list. Do not output markdown code blocks, just raw JSON.\n")
	b.WriteString(langInstruction)
	b.WriteString("\n\nFormat:\n")
	b.WriteString("[\n")
	b.WriteString("    {\n")
	b.WriteString("        \"card\": \"Card Name\",\n")
	b.WriteString("        \"benefit\": \"Benefit Title (e.g. $50 Hotel Credit)\",\n")
	fmt.Fprintf(&b, "        \"deadline\": \"YYYY-MM-DD\" (Assume current year %d. If monthly, use end of this month),\n", today.Year())
	b.WriteString("        \"description\": \"Brief instruction on how to use it.\"\n")
	b.WriteString("    }\n")
	b.WriteString("]\n")
	return b.String()
}

func languageDirective(lang string) string {
	if lang == "zh" {
		return "请用中文回答。"
	}
	return "Respond in English."
}
