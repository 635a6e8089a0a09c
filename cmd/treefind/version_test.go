package main

import "testing"

func TestBuildInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info buildInfo
		want string
	}{
		{"no revision", buildInfo{}, "dev"},
		{"commit hash", buildInfo{revision: "0123456789abcdef"}, "0123456"},
		{"dirty tree", buildInfo{revision: "0123456789abcdef", modified: true}, "0123456-dirty"},
		{"module version", buildInfo{revision: "v1.2.3-beta.1"}, "v1.2.3-beta.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
