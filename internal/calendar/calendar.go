// Package calendar формирует ссылки и файлы календаря для напоминаний о
// бенефитах. Чистое форматирование, без состояния.
package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const deadlineLayout = "2006-01-02"

// GoogleCalendarURL возвращает ссылку на создание события в Google Calendar
// на весь день дедлайна. Если дедлайн не парсится, дата передаётся как есть.
func GoogleCalendarURL(title, description, deadline string) string {
	dates := deadline
	if day, err := time.Parse(deadlineLayout, deadline); err == nil {
		dates = day.Format("20060102") + "/" + day.AddDate(0, 0, 1).Format("20060102")
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("details", description)
	q.Set("dates", dates)

	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

// ICSContent возвращает минимальный текст .ics-файла с одним событием на весь
// день дедлайна. При нераспознанном дедлайне событие остаётся без дат.
func ICSContent(title, description, deadline string) string {
	var b strings.Builder
	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	writeLine("BEGIN:VCALENDAR")
	writeLine("VERSION:2.0")
	writeLine("PRODID:-//Walle//Benefit Reminder//EN")
	writeLine("BEGIN:VEVENT")
	writeLine("SUMMARY:" + escapeICS(title))
	writeLine("DESCRIPTION:" + escapeICS(description))
	if day, err := time.Parse(deadlineLayout, deadline); err == nil {
		writeLine(fmt.Sprintf("DTSTART;VALUE=DATE:%s", day.Format("20060102")))
		writeLine(fmt.Sprintf("DTEND;VALUE=DATE:%s", day.AddDate(0, 0, 1).Format("20060102")))
	}
	writeLine("END:VEVENT")
	writeLine("END:VCALENDAR")

	return b.String()
}

// escapeICS экранирует спецсимволы текстовых полей по RFC 5545.
func escapeICS(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}
