package config

import "testing"

func validConfig() *Config {
	cfg := defaults()
	cfg.ClusterID = 1
	cfg.DataPath = "/tmp/fastdir"
	cfg.MyServerID = 1
	cfg.Peers = []PeerSpec{
		{ServerID: 1, ClusterAddr: "10.0.0.1:11411", ServiceAddr: "10.0.0.1:11401"},
		{ServerID: 2, ClusterAddr: "10.0.0.2:11411", ServiceAddr: "10.0.0.2:11401"},
	}
	return cfg
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsMissingClusterID(t *testing.T) {
	cfg := validConfig()
	cfg.ClusterID = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for cluster_id <= 0")
	}
}

func TestValidateRejectsUnknownMyServerID(t *testing.T) {
	cfg := validConfig()
	cfg.MyServerID = 99
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error when my_server_id has no matching roster entry")
	}
}

func TestValidateRejectsOversizedDentryMaxDataSize(t *testing.T) {
	cfg := validConfig()
	cfg.DentryMaxDataSize = 5000
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for dentry_max_data_size > 4096")
	}
}

func TestConfigSignIsOrderIndependent(t *testing.T) {
	cfg1 := validConfig()

	cfg2 := validConfig()
	cfg2.Peers[0], cfg2.Peers[1] = cfg2.Peers[1], cfg2.Peers[0]

	if cfg1.ConfigSign() != cfg2.ConfigSign() {
		t.Fatal("config_sign must be identical regardless of roster entry order")
	}
}

func TestConfigSignChangesWithRosterContent(t *testing.T) {
	cfg1 := validConfig()
	cfg2 := validConfig()
	cfg2.Peers[0].ServiceAddr = "10.0.0.9:11401"

	if cfg1.ConfigSign() == cfg2.ConfigSign() {
		t.Fatal("config_sign must change when roster content changes")
	}
}
