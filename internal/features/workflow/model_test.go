package workflow

import (
	"errors"
	"testing"
	"time"
)

func TestValidateChain(t *testing.T) {
	tests := []struct {
		name    string
		chain   []ChainLevel
		wantErr bool
	}{
		{
			name: "valid three levels",
			chain: []ChainLevel{
				{Level: 1, Role: "schooladmin", Required: true},
				{Level: 2, Role: "sektoradmin", Required: true},
				{Level: 3, Role: "regionadmin", Required: false},
			},
		},
		{
			name:    "empty chain",
			chain:   []ChainLevel{},
			wantErr: true,
		},
		{
			name: "duplicate level",
			chain: []ChainLevel{
				{Level: 1, Role: "schooladmin"},
				{Level: 1, Role: "sektoradmin"},
			},
			wantErr: true,
		},
		{
			name: "decreasing levels",
			chain: []ChainLevel{
				{Level: 2, Role: "sektoradmin"},
				{Level: 1, Role: "schooladmin"},
			},
			wantErr: true,
		},
		{
			name: "unknown role",
			chain: []ChainLevel{
				{Level: 1, Role: "headmaster"},
			},
			wantErr: true,
		},
		{
			name: "gaps are allowed",
			chain: []ChainLevel{
				{Level: 1, Role: "schooladmin"},
				{Level: 5, Role: "regionadmin"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &WorkflowDefinition{Chain: tt.chain}
			err := def.ValidateChain()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChain() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedChain) {
				t.Errorf("ValidateChain() error = %v, want ErrMalformedChain", err)
			}
		})
	}
}

func TestChainNavigation(t *testing.T) {
	def := &WorkflowDefinition{Chain: []ChainLevel{
		{Level: 1, Role: "schooladmin", Required: true},
		{Level: 2, Role: "sektoradmin", Required: true},
		{Level: 3, Role: "regionadmin", Required: false},
	}}

	if first := def.FirstLevel(); first.Level != 1 {
		t.Errorf("FirstLevel() = %d, want 1", first.Level)
	}

	if next, ok := def.NextLevel(1); !ok || next.Level != 2 {
		t.Errorf("NextLevel(1) = %v/%v, want level 2", next, ok)
	}
	if _, ok := def.NextLevel(3); ok {
		t.Error("NextLevel(3) should report no further level")
	}

	if def.RemainingAllOptional(1) {
		t.Error("RemainingAllOptional(1) = true, level 2 is still required")
	}
	if !def.RemainingAllOptional(2) {
		t.Error("RemainingAllOptional(2) = false, only level 3 remains and it is optional")
	}
}

func TestAutoApproveDuration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		enabled bool
	}{
		{"disabled when empty", "", 0, false},
		{"week", "168h", 168 * time.Hour, true},
		{"garbage", "soon", 0, false},
		{"negative", "-1h", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WorkflowConfig{AutoApproveAfter: tt.value}
			got, enabled := cfg.AutoApproveDuration()
			if enabled != tt.enabled || got != tt.want {
				t.Errorf("AutoApproveDuration() = %v/%v, want %v/%v", got, enabled, tt.want, tt.enabled)
			}
		})
	}
}
