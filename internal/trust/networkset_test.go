package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNetworkSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		entries  []string
		expected int
	}{
		{
			name:     "nil entries",
			entries:  nil,
			expected: 0,
		},
		{
			name:     "empty entries",
			entries:  []string{},
			expected: 0,
		},
		{
			name:     "single CIDR",
			entries:  []string{"10.0.0.0/8"},
			expected: 1,
		},
		{
			name:     "multiple CIDRs",
			entries:  []string{"10.0.0.0/8", "172.16.0.0/12"},
			expected: 2,
		},
		{
			name:     "single IP without CIDR notation",
			entries:  []string{"192.168.1.1"},
			expected: 1,
		},
		{
			name:     "invalid entry is dropped",
			entries:  []string{"not-an-address", "10.0.0.0/8"},
			expected: 1,
		},
		{
			name:     "blank entries are skipped",
			entries:  []string{"", "  ", "10.0.0.0/8"},
			expected: 1,
		},
		{
			name:     "IPv6 CIDR",
			entries:  []string{"fd00::/8"},
			expected: 1,
		},
		{
			name:     "IPv6 single address",
			entries:  []string{"::1"},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewNetworkSet(tt.entries, nil)
			assert.Equal(t, tt.expected, s.Size())
			assert.Equal(t, tt.expected == 0, s.Empty())
		})
	}
}

func TestParseNetworkSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		spec     string
		expected int
	}{
		{
			name:     "empty string",
			spec:     "",
			expected: 0,
		},
		{
			name:     "whitespace only",
			spec:     "   ",
			expected: 0,
		},
		{
			name:     "comma separated with spaces",
			spec:     "10.0.0.0/8, 172.16.0.0/12, 192.168.1.1",
			expected: 3,
		},
		{
			name:     "mixed families",
			spec:     "10.0.0.0/8,fd00::/8,::1",
			expected: 3,
		},
		{
			name:     "invalid entries skipped",
			spec:     "10.0.0.0/8,garbage,300.300.300.300",
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := ParseNetworkSet(tt.spec, nil)
			assert.Equal(t, tt.expected, s.Size())
		})
	}
}

func TestNetworkSetContains(t *testing.T) {
	t.Parallel()

	s := NewNetworkSet([]string{"10.0.0.0/8", "192.168.1.1", "fd00::/8"}, nil)

	tests := []struct {
		name     string
		addr     string
		expected bool
	}{
		{"inside CIDR", "10.1.2.3", true},
		{"outside CIDR", "11.0.0.1", false},
		{"exact single IP", "192.168.1.1", true},
		{"neighbour of single IP", "192.168.1.2", false},
		{"IPv6 inside", "fd00::1", true},
		{"IPv6 outside", "fe80::1", false},
		{"unparseable address", "not-an-ip", false},
		{"empty address", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, s.Contains(tt.addr))
		})
	}
}

func TestNetworkSetEntries(t *testing.T) {
	t.Parallel()

	s := ParseNetworkSet("10.0.0.0/8, bogus, ::1", nil)
	require.Equal(t, []string{"10.0.0.0/8", "::1"}, s.Entries())

	// Returned slice is a copy; mutating it must not affect the set.
	entries := s.Entries()
	entries[0] = "changed"
	assert.Equal(t, []string{"10.0.0.0/8", "::1"}, s.Entries())
}
