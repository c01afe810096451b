package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleStock, true},
		{RoleAdmin, RoleUser, true},
		{RoleStock, RoleAdmin, false},
		{RoleStock, RoleStock, true},
		{RoleStock, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleUser, RoleStock, false},
		{RoleUser, RoleUser, true},
		// Unknown roles fail-closed.
		{"unknown", RoleUser, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleUser, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestRequestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		allowed  bool
	}{
		{RequestDraft, RequestRequested, true},
		{RequestRequested, RequestApproved, true},
		{RequestApproved, RequestDone, true},
		{RequestDraft, RequestCancelled, true},
		{RequestRequested, RequestCancelled, true},
		{RequestRequested, RequestDone, true},
		{RequestDraft, RequestApproved, false},
		{RequestDraft, RequestDone, false},
		{RequestApproved, RequestCancelled, false},
		{RequestApproved, RequestRequested, false},
		{RequestDone, RequestCancelled, false},
		{RequestDone, RequestDraft, false},
		{RequestCancelled, RequestDraft, false},
		{RequestCancelled, RequestRequested, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestRequestEditable(t *testing.T) {
	for state, want := range map[string]bool{
		RequestDraft:     true,
		RequestRequested: true,
		RequestCancelled: true,
		RequestApproved:  false,
		RequestDone:      false,
	} {
		r := Request{State: state}
		if got := r.Editable(); got != want {
			t.Errorf("Request{State: %q}.Editable() = %v, want %v", state, got, want)
		}
	}
}
