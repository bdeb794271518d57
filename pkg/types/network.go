package types

// AuthMode is the authentication scheme a wireless network expects.
type AuthMode string

const (
	AuthUnknown        AuthMode = ""
	AuthNone           AuthMode = "none"
	AuthWEP            AuthMode = "wep"
	AuthWPAPersonal    AuthMode = "wpa-psk"
	AuthWPA2Personal   AuthMode = "wpa2-psk"
	AuthWPA3Personal   AuthMode = "wpa3-sae"
	AuthWPA2Enterprise AuthMode = "wpa2-eap"
)

// Credentials identify the network to join. Password is empty for open networks.
type Credentials struct {
	SSID     string `json:"ssid" yaml:"ssid"`
	Password string `json:"-" yaml:"password"`
}

// Network is one entry of a wireless scan.
type Network struct {
	SSID   string   `json:"ssid"`
	BSSID  string   `json:"bssid,omitempty"`
	Auth   AuthMode `json:"auth"`
	Signal int      `json:"signal"`
}

// AddressInfo describes the address assigned to the link once it is up.
type AddressInfo struct {
	Interface string   `json:"interface"`
	IP        string   `json:"ip"`
	Gateway   string   `json:"gateway"`
	DNS       []string `json:"dns,omitempty"`
}
