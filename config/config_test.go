package config_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/woutdenolf/coilmq/config"

	"github.com/pelletier/go-toml/v2"
)

func TestWriteDefaultProducesValidConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := config.WriteDefault(&buf); err != nil {
		t.Fatal(err)
	}

	cfg := new(config.CoilConfig)
	if err := toml.Unmarshal(buf.Bytes(), cfg); err != nil {
		t.Fatal(err)
	}
	if err := cfg.MergeDefault().Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Type != "memory" {
		t.Fatal("expected memory store to", cfg.Store.Type)
	}
}

func TestMergeDefaultFillsEmptyFields(t *testing.T) {
	cfg := new(config.CoilConfig).MergeDefault()

	if len(cfg.Broker.Listen) == 0 {
		t.Fatal("broker listen should be defaulted")
	}
	if cfg.Broker.SendChannelSize <= 0 {
		t.Fatal("send channel size should be defaulted")
	}
	if cfg.Broker.QueueScheduler != "random" {
		t.Fatal("unexpected queue scheduler:", cfg.Broker.QueueScheduler)
	}
	if cfg.Broker.SubscriberScheduler != "favor_reliable" {
		t.Fatal("unexpected subscriber scheduler:", cfg.Broker.SubscriberScheduler)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestMergeDefaultKeepsExplicitValues(t *testing.T) {
	doc := `
[broker]
listen = ":7613"
queue_scheduler = "most_backlog"

[store]
type = "badger"

[store.badger]
in_memory = true
`
	cfg := new(config.CoilConfig)
	if err := toml.Unmarshal([]byte(doc), cfg); err != nil {
		t.Fatal(err)
	}
	cfg.MergeDefault()

	if cfg.Broker.Listen != ":7613" {
		t.Fatal("explicit listen overridden:", cfg.Broker.Listen)
	}
	if cfg.Broker.QueueScheduler != "most_backlog" {
		t.Fatal("explicit scheduler overridden:", cfg.Broker.QueueScheduler)
	}
	if cfg.Store.Type != "badger" || !cfg.Store.Badger.InMemory {
		t.Fatal("explicit store settings overridden")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []string{
		"[store]\ntype = \"cassandra\"",
		"[store]\ntype = \"postgres\"",
		"[broker]\nqueue_scheduler = \"lifo\"",
		"[broker]\nsubscriber_scheduler = \"round_robin\"",
		"[auth]\ndisable = false",
	}
	for _, doc := range cases {
		cfg := new(config.CoilConfig)
		if err := toml.Unmarshal([]byte(doc), cfg); err != nil {
			t.Fatal(err)
		}
		if err := cfg.MergeDefault().Validate(); err == nil {
			t.Fatal("expected validation failure for:", strings.ReplaceAll(doc, "\n", " "))
		}
	}
}
