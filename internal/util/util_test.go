package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []string
		want    map[string]string
	}{
		{
			name:    "simple entries",
			entries: []string{"USER=alice", "HOME=/home/alice"},
			want:    map[string]string{"USER": "alice", "HOME": "/home/alice"},
		},
		{
			name:    "value containing equals",
			entries: []string{"OPTS=a=b,c=d"},
			want:    map[string]string{"OPTS": "a=b,c=d"},
		},
		{
			name:    "entry without equals is skipped",
			entries: []string{"JUNK", "USER=bob"},
			want:    map[string]string{"USER": "bob"},
		},
		{
			name:    "later entry wins",
			entries: []string{"USER=alice", "USER=bob"},
			want:    map[string]string{"USER": "bob"},
		},
		{
			name:    "empty input",
			entries: nil,
			want:    map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ParseEnv(tt.entries))
		})
	}
}

func TestSplitDevices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"empty", "", nil},
		{"none sentinel", "none", nil},
		{"single device", "0", []string{"0"}},
		{"multiple devices", "0,2,3", []string{"0", "2", "3"}},
		{"spaces trimmed", " 0 , 1 ", []string{"0", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, SplitDevices(tt.value))
		})
	}
}

func TestJoinDevices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		devices []string
		want    string
	}{
		{"empty set yields sentinel", nil, "none"},
		{"single", []string{"1"}, "1"},
		{"multiple", []string{"0", "1"}, "0,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, JoinDevices(tt.devices))
		})
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"0", "1"}, SplitDevices(JoinDevices([]string{"0", "1"})))
	require.Nil(t, SplitDevices(JoinDevices(nil)))
}

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0 Days 00:00:00"},
		{"seconds only", 42 * time.Second, "0 Days 00:00:42"},
		{"hours and minutes", 3*time.Hour + 25*time.Minute + 9*time.Second, "0 Days 03:25:09"},
		{"multiple days", 49*time.Hour + 30*time.Second, "2 Days 01:00:30"},
		{"negative clamps to zero", -5 * time.Second, "0 Days 00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, FormatUptime(tt.d))
		})
	}
}

func TestHashCredential(t *testing.T) {
	t.Parallel()

	h1 := HashCredential("hunter2")
	h2 := HashCredential("hunter2")
	h3 := HashCredential("hunter3")

	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
	require.Len(t, h1, 64)
	require.NotContains(t, h1, "hunter2")
}

func TestVerifyCredential(t *testing.T) {
	t.Parallel()

	hash := HashCredential("secret")

	require.True(t, VerifyCredential("secret", hash))
	require.False(t, VerifyCredential("wrong", hash))
	require.False(t, VerifyCredential("", hash))
}
