package reporter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"deskrec/internal/models"
)

type fakeSource struct {
	rows     []models.AppSummary
	sessions int64
	err      error
	since    time.Time
}

func (f *fakeSource) GetUsageSince(since time.Time) ([]models.AppSummary, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	// hand back copies so derivation cannot leak between calls
	rows := make([]models.AppSummary, len(f.rows))
	copy(rows, f.rows)
	return rows, nil
}

func (f *fakeSource) CountSessionsSince(since time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.sessions, nil
}

var _ Source = (*fakeSource)(nil)

// Wednesday afternoon
var reportNow = time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)

func newTestReporter(source Source) *Reporter {
	r := New(source)
	r.now = func() time.Time { return reportNow }
	return r
}

func TestGetPeriod(t *testing.T) {
	r := newTestReporter(&fakeSource{})

	tests := []struct {
		periodType string
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			periodType: "day",
			wantStart:  time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			periodType: "today",
			wantStart:  time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			periodType: "week",
			wantStart:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), // Monday
			wantEnd:    time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			periodType: "month",
			wantStart:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.periodType, func(t *testing.T) {
			period, err := r.getPeriod(tt.periodType)
			if err != nil {
				t.Fatalf("getPeriod(%q) error: %v", tt.periodType, err)
			}
			if !period.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", period.Start, tt.wantStart)
			}
			if !period.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", period.End, tt.wantEnd)
			}
		})
	}
}

func TestGetPeriodWeekStartsMondayOnSunday(t *testing.T) {
	r := newTestReporter(&fakeSource{})
	r.now = func() time.Time {
		return time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC) // Sunday
	}

	period, err := r.getPeriod("week")
	if err != nil {
		t.Fatalf("getPeriod(week) error: %v", err)
	}
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // previous Monday
	if !period.Start.Equal(want) {
		t.Errorf("week Start = %v, want %v", period.Start, want)
	}
}

func TestGetPeriodInvalid(t *testing.T) {
	r := newTestReporter(&fakeSource{})
	if _, err := r.getPeriod("year"); err == nil {
		t.Error("getPeriod(year) should fail")
	}
}

func TestGenerateReport(t *testing.T) {
	source := &fakeSource{
		rows: []models.AppSummary{
			{AppName: "firefox", TotalSeconds: 3600, FocusCount: 5, SessionCount: 2},
			{AppName: "Code", TotalSeconds: 1800, FocusCount: 2, SessionCount: 1},
		},
		sessions: 2,
	}
	r := newTestReporter(source)

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}

	if want := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC); !source.since.Equal(want) {
		t.Errorf("queried since %v, want %v", source.since, want)
	}

	if report.TotalSeconds != 5400 {
		t.Errorf("TotalSeconds = %v, want 5400", report.TotalSeconds)
	}
	if report.TotalHours != 1.5 {
		t.Errorf("TotalHours = %v, want 1.5", report.TotalHours)
	}
	if report.SessionCount != 2 {
		t.Errorf("SessionCount = %d, want 2", report.SessionCount)
	}

	firefox := report.Apps[0]
	if firefox.TotalHours != 1.0 || firefox.TotalMinutes != 60 {
		t.Errorf("firefox derived = %vh %vm, want 1h 60m", firefox.TotalHours, firefox.TotalMinutes)
	}
	if got := firefox.Percentage; got < 66.6 || got > 66.7 {
		t.Errorf("firefox Percentage = %v, want about 66.7", got)
	}
	if got := report.Apps[1].Percentage; got < 33.3 || got > 33.4 {
		t.Errorf("Code Percentage = %v, want about 33.3", got)
	}
	if !report.GeneratedAt.Equal(reportNow) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, reportNow)
	}
}

func TestGenerateReportEmpty(t *testing.T) {
	r := newTestReporter(&fakeSource{})

	report, err := r.GenerateReport("week")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}
	if report.TotalSeconds != 0 || len(report.Apps) != 0 {
		t.Errorf("empty report = %+v, want zero totals", report)
	}
}

func TestGenerateReportSourceFailure(t *testing.T) {
	r := newTestReporter(&fakeSource{err: errors.New("index unavailable")})

	if _, err := r.GenerateReport("day"); err == nil {
		t.Error("GenerateReport() should surface source failures")
	}
}

func TestFormatReportText(t *testing.T) {
	source := &fakeSource{
		rows: []models.AppSummary{
			{AppName: "a-very-long-application-name-indeed", TotalSeconds: 3600, FocusCount: 4},
		},
		sessions: 1,
	}
	r := newTestReporter(source)

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}

	text := r.FormatReportText(report)
	for _, want := range []string{
		"Recording Report - day",
		"Period: 2025-06-04 00:00 to 2025-06-05 00:00",
		"Sessions: 1",
		"Total Time: 1.00h (60m)",
		"Application",
		"a-very-long-application-nam...", // truncated to the column width
		"100.0%",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatReportText() missing %q:\n%s", want, text)
		}
	}
}

func TestFormatReportTextEmpty(t *testing.T) {
	r := newTestReporter(&fakeSource{})

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}
	if text := r.FormatReportText(report); !strings.Contains(text, "No activity recorded") {
		t.Errorf("empty report text = %q, want the no-activity notice", text)
	}
}

func TestFormatReportJSON(t *testing.T) {
	source := &fakeSource{
		rows:     []models.AppSummary{{AppName: "firefox", TotalSeconds: 60, FocusCount: 1}},
		sessions: 1,
	}
	r := newTestReporter(source)

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}

	out, err := r.FormatReportJSON(report)
	if err != nil {
		t.Fatalf("FormatReportJSON() error: %v", err)
	}

	var decoded models.Report
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("report JSON does not parse: %v", err)
	}
	if decoded.Period.Type != "day" || len(decoded.Apps) != 1 || decoded.Apps[0].AppName != "firefox" {
		t.Errorf("decoded report = %+v, want day period with firefox", decoded)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 30, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this-is-a-long-name", 10, "this-is..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
