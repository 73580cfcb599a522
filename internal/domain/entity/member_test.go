package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMember_IsVerified(t *testing.T) {
	assert.False(t, (&Member{VerificationStatus: VerificationStatusPending}).IsVerified())
	assert.True(t, (&Member{VerificationStatus: VerificationStatusVerified}).IsVerified())
}

func TestMember_IsTokenExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name           string
		tokenExpiresAt *time.Time
		want           bool
	}{
		{name: "no token expiry means no usable token", tokenExpiresAt: nil, want: true},
		{name: "unexpired token", tokenExpiresAt: &future, want: false},
		{name: "expired token", tokenExpiresAt: &past, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member := &Member{TokenExpiresAt: tt.tokenExpiresAt}
			assert.Equal(t, tt.want, member.IsTokenExpired(now))
		})
	}
}
