package model

import "testing"

func TestPageVisitIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{contentType: "", want: true},
		{contentType: "text/html; charset=utf-8", want: true},
		{contentType: "TEXT/HTML", want: true},
		{contentType: "application/xhtml+xml", want: true},
		{contentType: "application/json", want: false},
		{contentType: "image/jpeg", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()

			p := PageVisit{ContentType: tt.contentType}
			if got := p.IsHTML(); got != tt.want {
				t.Errorf("IsHTML() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageVisitRetried(t *testing.T) {
	t.Parallel()

	if (PageVisit{Attempts: 1}).Retried() {
		t.Error("single attempt should not count as retried")
	}
	if !(PageVisit{Attempts: 3}).Retried() {
		t.Error("three attempts should count as retried")
	}
}
