package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	m "github.com/Meander-Cloud/go-cne/message"
)

const (
	// defaults for when not provided in Config
	Address            string        = "/dev/socket/cnd"
	EventChannelLength uint16        = 1024
	DialTimeout        time.Duration = time.Second * 3
	WriteTimeout       time.Duration = time.Second * 3
	ReconnectInterval  time.Duration = time.Second * 4
	ReconnectLogLimit  uint16        = 8
	MaxMessageLen      uint32        = 65535
	LogPrefix          string        = "CNE"
)

type Config struct {
	Address            string `yaml:"address"`
	EventChannelLength uint16 `yaml:"event_channel_length"`

	DialTimeout       uint32 `yaml:"dial_timeout"`       // milliseconds
	WriteTimeout      uint32 `yaml:"write_timeout"`      // milliseconds
	ReconnectInterval uint32 `yaml:"reconnect_interval"` // milliseconds
	ReconnectLogLimit uint16 `yaml:"reconnect_log_limit"`
	MaxMessageLen     uint32 `yaml:"max_message_len"`

	DefaultConnection        bool   `yaml:"default_connection"`
	DefaultNetworkPreference string `yaml:"default_network_preference"`
	WwanInterface            string `yaml:"wwan_interface"`

	MetricsAddress string `yaml:"metrics_address"`

	LogPrefix string `yaml:"log_prefix"`
	LogDebug  bool   `yaml:"log_debug"`
}

func (c *Config) Validate() error {
	if c == nil {
		err := fmt.Errorf("nil config")
		log.Printf("%s", err.Error())
		return err
	}

	if c.MaxMessageLen > MaxMessageLen {
		err := fmt.Errorf("invalid MaxMessageLen=%d, wire format caps messages at %d bytes", c.MaxMessageLen, MaxMessageLen)
		log.Printf("%s", err.Error())
		return err
	}

	if c.DefaultNetworkPreference != "" {
		rat, err := m.ParseRat(c.DefaultNetworkPreference)
		if err != nil {
			err = fmt.Errorf("invalid DefaultNetworkPreference=%s", c.DefaultNetworkPreference)
			log.Printf("%s", err.Error())
			return err
		}
		if rat != m.RatWlan && rat != m.RatWwan {
			err = fmt.Errorf("invalid DefaultNetworkPreference=%s, must be wlan or wwan", c.DefaultNetworkPreference)
			log.Printf("%s", err.Error())
			return err
		}
	}

	return nil
}

// NetworkPreference returns the configured default network preference, WLAN when unset.
func (c *Config) NetworkPreference() m.Rat {
	if c.DefaultNetworkPreference == "" {
		return m.RatWlan
	}
	rat, err := m.ParseRat(c.DefaultNetworkPreference)
	if err != nil {
		return m.RatWlan
	}
	return rat
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := new(Config)
	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}
