package models

import "testing"

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"pending", StatusPending, true},
		{"generating", StatusGenerating, true},
		{"completed", StatusCompleted, true},
		{"failed", StatusFailed, true},
		{"unknown value", Status("done"), false},
		{"empty", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("Status.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusPending, false},
		{StatusGenerating, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{"pending to generating", StatusPending, StatusGenerating, true},
		{"pending to completed", StatusPending, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"generating to completed", StatusGenerating, StatusCompleted, true},
		{"generating to failed", StatusGenerating, StatusFailed, true},
		{"generating back to pending", StatusGenerating, StatusPending, false},
		{"completed to generating", StatusCompleted, StatusGenerating, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"duplicate completed is idempotent", StatusCompleted, StatusCompleted, true},
		{"duplicate failed is idempotent", StatusFailed, StatusFailed, true},
		{"pending to pending", StatusPending, StatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}
