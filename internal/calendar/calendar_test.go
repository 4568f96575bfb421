package calendar

import (
	"net/url"
	"strings"
	"testing"
)

func TestGoogleCalendarURL(t *testing.T) {
	got := GoogleCalendarURL("Amex Platinum: Uber Cash", "Use the $15 credit", "2026-01-31")

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "calendar.google.com" {
		t.Fatalf("host = %q, want calendar.google.com", u.Host)
	}

	q := u.Query()
	if q.Get("action") != "TEMPLATE" {
		t.Fatalf("action = %q, want TEMPLATE", q.Get("action"))
	}
	if q.Get("text") != "Amex Platinum: Uber Cash" {
		t.Fatalf("text = %q", q.Get("text"))
	}
	if q.Get("dates") != "20260131/20260201" {
		t.Fatalf("dates = %q, want 20260131/20260201", q.Get("dates"))
	}
}

func TestGoogleCalendarURL_MalformedDeadline(t *testing.T) {
	got := GoogleCalendarURL("Title", "Desc", "end of month")

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Query().Get("dates") != "end of month" {
		t.Fatalf("malformed deadline must pass through, got %q", u.Query().Get("dates"))
	}
}

func TestICSContent(t *testing.T) {
	got := ICSContent("Chase Freedom Flex: Quarterly 5%", "Activate the category", "2026-03-31")

	for _, fragment := range []string{
		"BEGIN:VCALENDAR\r\n",
		"BEGIN:VEVENT\r\n",
		"SUMMARY:Chase Freedom Flex: Quarterly 5%\r\n",
		"DTSTART;VALUE=DATE:20260331\r\n",
		"DTEND;VALUE=DATE:20260401\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("ics lacks %q:\n%s", fragment, got)
		}
	}
}

func TestICSContent_MalformedDeadlineOmitsDates(t *testing.T) {
	got := ICSContent("Title", "Desc", "soon")

	if strings.Contains(got, "DTSTART") {
		t.Fatalf("ics must omit DTSTART for malformed deadline:\n%s", got)
	}
	if !strings.Contains(got, "SUMMARY:Title\r\n") {
		t.Fatalf("ics lacks summary:\n%s", got)
	}
}

func TestICSContent_EscapesSpecialCharacters(t *testing.T) {
	got := ICSContent("A;B", "line1\nline2, ok", "2026-01-01")

	if !strings.Contains(got, "SUMMARY:A\\;B") {
		t.Fatalf("semicolon not escaped:\n%s", got)
	}
	if !strings.Contains(got, "DESCRIPTION:line1\\nline2\\, ok") {
		t.Fatalf("newline/comma not escaped:\n%s", got)
	}
}
