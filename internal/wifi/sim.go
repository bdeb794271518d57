package wifi

import (
	"context"
	"errors"

	"github.com/pingsantohq/netweather/pkg/types"
)

var errSimDown = errors.New("simulated link down")

// Sim is an in-memory stack for running on a host that manages its own
// network. Setting Down makes every step after the scan fail.
type Sim struct {
	Networks []types.Network
	Address  types.AddressInfo
	Down     bool

	SSID     string
	Password string
	Auth     types.AuthMode
}

func NewSim() *Sim {
	return &Sim{
		Address: types.AddressInfo{Interface: "sim0", IP: "127.0.0.1", Gateway: "127.0.0.1"},
	}
}

func (s *Sim) Scan(ctx context.Context) ([]types.Network, error) {
	return append([]types.Network(nil), s.Networks...), ctx.Err()
}

func (s *Sim) Configure(ctx context.Context, ssid, password string, auth types.AuthMode) error {
	s.SSID, s.Password, s.Auth = ssid, password, auth
	return ctx.Err()
}

func (s *Sim) Start(ctx context.Context) error {
	if s.Down {
		return errSimDown
	}
	return ctx.Err()
}

func (s *Sim) Connect(ctx context.Context) error {
	if s.Down {
		return errSimDown
	}
	return ctx.Err()
}

func (s *Sim) WaitForAddress(ctx context.Context) (types.AddressInfo, error) {
	if s.Down {
		return types.AddressInfo{}, errSimDown
	}
	return s.Address, ctx.Err()
}
