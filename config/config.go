package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/woutdenolf/coilmq/api"

	"github.com/pelletier/go-toml/v2"
)

var _defaultConfig = &CoilConfig{
	Broker: BrokerConfig{
		Listen:              api.DefaultStompListen,
		MaxConnections:      0,
		LogLevel:            "info",
		QueueScheduler:      "random",
		SubscriberScheduler: "favor_reliable",
		SendChannelSize:     64,

		WebSocket: struct {
			Disable bool   `toml:"disable"`
			Listen  string `toml:"listen"`
		}{
			Listen: api.DefaultWebSocketListen,
		},
	},

	Store: StoreConfig{
		Type: "memory",
		Badger: struct {
			Path     string `toml:"path"`
			InMemory bool   `toml:"in_memory"`
		}{
			Path: "coilmq.data",
		},
		Postgres: struct {
			Sources  []string `toml:"sources"`
			Replicas []string `toml:"replicas"`
		}{
			Sources:  []string{},
			Replicas: []string{},
		},
	},

	Auth: AuthConfig{
		Disable: true,
	},

	Manage: ManageConfig{
		Listen: api.DefaultManageListen,
	},
}

func WriteDefault(w io.Writer) error {
	data, err := toml.Marshal(_defaultConfig)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err != nil {
		return err
	}
	return nil
}

type CoilConfig struct {
	Broker BrokerConfig `toml:"broker"`
	Store  StoreConfig  `toml:"store"`
	Auth   AuthConfig   `toml:"auth"`
	Manage ManageConfig `toml:"manage"`
}

type BrokerConfig struct {
	Listen         string `toml:"listen"`
	MaxConnections int    `toml:"max_connections"` // 0 means unlimited
	LogLevel       string `toml:"log_level"`

	QueueScheduler      string `toml:"queue_scheduler"`
	SubscriberScheduler string `toml:"subscriber_scheduler"`
	SendChannelSize     int    `toml:"send_channel_size"`

	WebSocket struct {
		Disable bool   `toml:"disable"`
		Listen  string `toml:"listen"`
	} `toml:"websocket"`
}

type StoreConfig struct {
	Type string `toml:"type"`

	Badger struct {
		Path     string `toml:"path"`
		InMemory bool   `toml:"in_memory"`
	} `toml:"badger"`

	Postgres struct {
		Sources  []string `toml:"sources"`
		Replicas []string `toml:"replicas"`
	} `toml:"postgres"`
}

type AuthConfig struct {
	Disable bool `toml:"disable"`

	Users []struct {
		Login    string `toml:"login"`
		Passcode string `toml:"passcode"`
	} `toml:"users"`
}

type ManageConfig struct {
	Disable bool   `toml:"disable"`
	Listen  string `toml:"listen"`
}

func (c *CoilConfig) Validate() error {
	if len(c.Broker.Listen) == 0 {
		return errors.New("broker listen address is empty")
	}
	switch c.Store.Type {
	case "memory", "badger", "postgres":
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}
	if c.Store.Type == "postgres" && len(c.Store.Postgres.Sources) == 0 {
		return errors.New("postgres store requires at least one source")
	}
	switch c.Broker.QueueScheduler {
	case "random", "most_backlog":
	default:
		return fmt.Errorf("unknown queue scheduler: %s", c.Broker.QueueScheduler)
	}
	switch c.Broker.SubscriberScheduler {
	case "favor_reliable", "random":
	default:
		return fmt.Errorf("unknown subscriber scheduler: %s", c.Broker.SubscriberScheduler)
	}
	if !c.Auth.Disable && len(c.Auth.Users) == 0 {
		return errors.New("auth enabled but no users configured")
	}
	return nil
}

// MergeDefault fills unset fields from the package defaults and returns the
// receiver for chaining.
func (c *CoilConfig) MergeDefault() *CoilConfig {
	if len(c.Broker.Listen) == 0 {
		c.Broker.Listen = _defaultConfig.Broker.Listen
	}
	if len(c.Broker.LogLevel) == 0 {
		c.Broker.LogLevel = _defaultConfig.Broker.LogLevel
	}
	if len(c.Broker.QueueScheduler) == 0 {
		c.Broker.QueueScheduler = _defaultConfig.Broker.QueueScheduler
	}
	if len(c.Broker.SubscriberScheduler) == 0 {
		c.Broker.SubscriberScheduler = _defaultConfig.Broker.SubscriberScheduler
	}
	if c.Broker.SendChannelSize <= 0 {
		c.Broker.SendChannelSize = _defaultConfig.Broker.SendChannelSize
	}
	if len(c.Broker.WebSocket.Listen) == 0 {
		c.Broker.WebSocket.Listen = _defaultConfig.Broker.WebSocket.Listen
	}
	if len(c.Store.Type) == 0 {
		c.Store.Type = _defaultConfig.Store.Type
	}
	if len(c.Store.Badger.Path) == 0 {
		c.Store.Badger.Path = _defaultConfig.Store.Badger.Path
	}
	if len(c.Manage.Listen) == 0 {
		c.Manage.Listen = _defaultConfig.Manage.Listen
	}
	return c
}
