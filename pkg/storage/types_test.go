package storage

import "testing"

func TestAgentAlive(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{status: 0, want: true},
		{status: 1, want: true},
		{status: 2, want: false},
		{status: 3, want: true},
	}
	for _, c := range cases {
		a := Agent{Status: c.status}
		if got := a.Alive(); got != c.want {
			t.Errorf("Agent{Status: %d}.Alive() = %v, want %v", c.status, got, c.want)
		}
	}
}
