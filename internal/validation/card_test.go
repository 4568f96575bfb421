package validation

import (
	"testing"

	"github.com/walleai/walle-agent/internal/model"
)

func TestNormalizeUserID(t *testing.T) {
	if got := NormalizeUserID("  Tony@Stark.COM "); got != "tony@stark.com" {
		t.Fatalf("NormalizeUserID = %q, want %q", got, "tony@stark.com")
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"tony@stark.com", true},
		{"  tony@stark.com  ", true},
		{"no-at-sign", false},
		{"@stark.com", false},
		{"tony@", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestIsValidLastFour(t *testing.T) {
	tests := []struct {
		lastFour string
		want     bool
	}{
		{"1234", true},
		{"0000", true},
		{"", true},
		{"123", false},
		{"12345", false},
		{"12a4", false},
	}

	for _, tt := range tests {
		if got := IsValidLastFour(tt.lastFour); got != tt.want {
			t.Fatalf("IsValidLastFour(%q) = %v, want %v", tt.lastFour, got, tt.want)
		}
	}
}

func TestIsValidNetwork(t *testing.T) {
	for _, n := range model.Networks {
		if !IsValidNetwork(n) {
			t.Fatalf("IsValidNetwork(%q) = false, want true", n)
		}
	}
	if IsValidNetwork("Maestro") {
		t.Fatalf("IsValidNetwork(Maestro) = true, want false")
	}
}

func TestIsValidOpenDate(t *testing.T) {
	tests := []struct {
		openDate string
		want     bool
	}{
		{"", true},
		{"2023-07-01", true},
		{"2023-13-01", false},
		{"07/01/2023", false},
		{"yesterday", false},
	}

	for _, tt := range tests {
		if got := IsValidOpenDate(tt.openDate); got != tt.want {
			t.Fatalf("IsValidOpenDate(%q) = %v, want %v", tt.openDate, got, tt.want)
		}
	}
}
