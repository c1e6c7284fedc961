// Package netstack wires the slip, ipv4, tcp and sched packages into a
// single running stack, the way a host configuration binds link devices,
// a forwarding table and a TCP listener together.
package netstack

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RouteConfig is one entry of the IPv4 forwarding table: cidr is
// "a.b.c.d/n", next_hop is "a.b.c.d".
type RouteConfig struct {
	CIDR    string `toml:"cidr"`
	NextHop string `toml:"next_hop"`
}

// PeerConfig names one serial link this node has to a neighbor, reached at
// NextHop, backed by the serial device at Device.
type PeerConfig struct {
	NextHop string `toml:"next_hop"`
	Device  string `toml:"device"`
}

// Config is the full configuration for a Stack: host address,
// ignore_checksum, the forwarding table, and the set of serial peers.
type Config struct {
	HostAddr       string        `toml:"host_addr"`
	IgnoreChecksum bool          `toml:"ignore_checksum"`
	TCPPort        uint16        `toml:"tcp_port"`
	MSS            int           `toml:"mss"`
	Routes         []RouteConfig `toml:"routes"`
	Peers          []PeerConfig  `toml:"peers"`
}

// LoadConfig decodes the TOML file at path into a Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("netstack: loading config: %w", err)
	}
	return cfg, nil
}
