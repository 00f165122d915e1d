package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
	if cfg.WaitingTTL != 5*time.Minute || cfg.NegotiationTimeout != 30*time.Second {
		t.Errorf("ttl=%v negotiation=%v", cfg.WaitingTTL, cfg.NegotiationTimeout)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("ice servers = %+v", cfg.ICEServers)
	}

	cat := cfg.BuildCatalog()
	ch, mode, topics := cat.Normalize("", "", nil)
	if ch != "general" || mode != "video" || len(topics) != 1 || topics[0] != "casual" {
		t.Errorf("defaults = %s %s %v", ch, mode, topics)
	}
	if chans := cat.Channels(); len(chans) != 1 || chans[0].AccentColor == "" {
		t.Errorf("channels = %+v", chans)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"unknown backend": func(v *viper.Viper) { v.Set("store.backend", "etcd") },
		"zero ttl":        func(v *viper.Viper) { v.Set("waiting_ttl", "0s") },
		"ttl below ping":  func(v *viper.Viper) { v.Set("waiting_ttl", "30s") },
		"redis no lease": func(v *viper.Viper) {
			v.Set("store.backend", "redis")
			v.Set("store.lease_ttl", "0s")
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			mutate(v)
			if _, err := decode(v); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
