package wifi

import (
	"testing"

	"github.com/pingsantohq/netweather/pkg/types"
)

func TestInferAuth(t *testing.T) {
	scan := []types.Network{
		{SSID: "other", Auth: types.AuthWPA3Personal},
		{SSID: "cafe", Auth: types.AuthNone},
		{SSID: "home", Auth: types.AuthWPA2Personal},
		{SSID: "mystery", Auth: types.AuthUnknown},
	}

	tests := []struct {
		name     string
		networks []types.Network
		ssid     string
		password string
		want     types.AuthMode
	}{
		{"reported mode wins over password", scan, "cafe", "secret", types.AuthNone},
		{"reported psk without password", scan, "home", "", types.AuthWPA2Personal},
		{"unknown mode with password", scan, "mystery", "secret", types.AuthWPA2Personal},
		{"unknown mode without password", scan, "mystery", "", types.AuthNone},
		{"not found with password", scan, "absent", "secret", types.AuthWPA2Personal},
		{"not found without password", scan, "absent", "", types.AuthNone},
		{"scan failed with password", nil, "home", "secret", types.AuthWPA2Personal},
		{"scan failed without password", nil, "home", "", types.AuthNone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferAuth(tc.networks, tc.ssid, tc.password); got != tc.want {
				t.Fatalf("InferAuth = %q want %q", got, tc.want)
			}
		})
	}
}

func TestInferAuthSkipsUnknownDuplicates(t *testing.T) {
	scan := []types.Network{
		{SSID: "home", Auth: types.AuthUnknown},
		{SSID: "home", Auth: types.AuthWPA3Personal},
	}
	if got := InferAuth(scan, "home", ""); got != types.AuthWPA3Personal {
		t.Fatalf("expected the reported mode, got %q", got)
	}
}
