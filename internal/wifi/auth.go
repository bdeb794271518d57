package wifi

import "github.com/pingsantohq/netweather/pkg/types"

// InferAuth chooses the authentication mode for ssid. A mode reported by the
// scan wins; otherwise, including when the scan failed and networks is nil,
// an empty password means an open network and anything else a pre-shared key.
func InferAuth(networks []types.Network, ssid, password string) types.AuthMode {
	for _, n := range networks {
		if n.SSID == ssid && n.Auth != types.AuthUnknown {
			return n.Auth
		}
	}
	if password == "" {
		return types.AuthNone
	}
	return types.AuthWPA2Personal
}
