package hours

import (
	"testing"
	"time"
)

func TestDateHourString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 5}
	expected := "2025-01-01 05"
	if s := dh.String(); s != expected {
		t.Errorf("String() expected %q, got %q", expected, s)
	}
}

func TestDateHourIsoString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 15}
	expected := "2025-01-01T15:00:00Z"
	if s := dh.IsoString(); s != expected {
		t.Errorf("IsoString() expected %q, got %q", expected, s)
	}
}

func TestDateHourAdd(t *testing.T) {
	tests := []struct {
		name     string
		input    DateHour
		addHours int
		expected DateHour
	}{
		{
			name:     "add within same day",
			input:    DateHour{Date: "2025-01-01", Hour: 10},
			addHours: 2,
			expected: DateHour{Date: "2025-01-01", Hour: 12},
		},
		{
			name:     "add crossing midnight",
			input:    DateHour{Date: "2025-01-01", Hour: 23},
			addHours: 2,
			expected: DateHour{Date: "2025-01-02", Hour: 1},
		},
		{
			name:     "add negative hours (subtract)",
			input:    DateHour{Date: "2025-01-01", Hour: 1},
			addHours: -2,
			expected: DateHour{Date: "2024-12-31", Hour: 23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.input.Add(tt.addHours)
			if result != tt.expected {
				t.Errorf("Add(%d) expected %+v, got %+v", tt.addHours, tt.expected, result)
			}
		})
	}
}

func TestDateHourTimeRoundTrip(t *testing.T) {
	tm := time.Date(2025, time.March, 2, 17, 30, 0, 0, time.UTC)
	dh := FromTime(tm)
	expected := time.Date(2025, time.March, 2, 17, 0, 0, 0, time.UTC)
	if got := dh.Time(); !got.Equal(expected) {
		t.Errorf("Time() expected %v, got %v", expected, got)
	}
}

func TestDateHourIsZero(t *testing.T) {
	var dh DateHour
	if !dh.IsZero() {
		t.Errorf("expected a zero value DateHour to be zero")
	}
	dh = DateHour{Date: "2025-01-01", Hour: 0}
	if dh.IsZero() {
		t.Errorf("expected a non-zero DateHour (non-empty Date) not to be zero")
	}
}

func TestFromTime(t *testing.T) {
	tm := time.Date(2025, time.January, 1, 15, 30, 0, 0, time.UTC)
	dh := FromTime(tm)
	expected := DateHour{Date: "2025-01-01", Hour: 15}
	if dh != expected {
		t.Errorf("FromTime() expected %+v, got %+v", expected, dh)
	}

	var zero time.Time
	if !FromTime(zero).IsZero() {
		t.Errorf("FromTime() with zero time expected a zero DateHour")
	}
}

func TestDayStart(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	// 23:30 UTC is already the next day in Berlin (UTC+1 in winter).
	tm := time.Date(2025, time.January, 1, 23, 30, 0, 0, time.UTC)
	got := DayStart(tm, berlin)
	expected := time.Date(2025, time.January, 2, 0, 0, 0, 0, berlin)
	if !got.Equal(expected) {
		t.Errorf("DayStart() expected %v, got %v", expected, got)
	}

	if next := NextDayStart(tm, berlin); !next.Equal(expected.AddDate(0, 0, 1)) {
		t.Errorf("NextDayStart() expected %v, got %v", expected.AddDate(0, 0, 1), next)
	}
}

func TestNextDayStartAcrossDstChange(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	// 2025-03-30 is the spring DST change in Berlin, the day is 23 hours long.
	tm := time.Date(2025, time.March, 30, 12, 0, 0, 0, berlin)
	next := NextDayStart(tm, berlin)
	expected := time.Date(2025, time.March, 31, 0, 0, 0, 0, berlin)
	if !next.Equal(expected) {
		t.Errorf("NextDayStart() across DST expected %v, got %v", expected, next)
	}
}

func TestSameLocalDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	a := time.Date(2025, time.January, 1, 23, 30, 0, 0, time.UTC) // Jan 2 in Berlin
	b := time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)
	if !SameLocalDay(a, b, berlin) {
		t.Errorf("expected %v and %v to share a Berlin calendar day", a, b)
	}
	if SameLocalDay(a, b, time.UTC) {
		t.Errorf("expected %v and %v to be different UTC days", a, b)
	}
}
