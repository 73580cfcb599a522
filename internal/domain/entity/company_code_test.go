package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCompanyCode_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{name: "no expiry set", expiresAt: nil, want: false},
		{name: "expiry in the future", expiresAt: &future, want: false},
		{name: "expiry in the past", expiresAt: &past, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := &CompanyCode{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, code.IsExpired(now))
		})
	}
}

func TestCompanyCode_HasCapacity(t *testing.T) {
	tests := []struct {
		name    string
		max     *int
		current int
		want    bool
	}{
		{name: "unlimited", max: nil, current: 1000, want: true},
		{name: "below cap", max: intPtr(5), current: 4, want: true},
		{name: "at cap", max: intPtr(5), current: 5, want: false},
		{name: "over cap", max: intPtr(5), current: 6, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := &CompanyCode{MaxActivations: tt.max, CurrentActivations: tt.current}
			assert.Equal(t, tt.want, code.HasCapacity())
		})
	}
}
