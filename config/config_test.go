package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress == "" {
		t.Fatalf("default config must set an RPC address")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file should be written: %v", err)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `RPCAddress = "127.0.0.1:9999"
DataDir = ""
Env = "test"
AdminAddresses = ["0x0101010101010101010101010101010101010101"]
FeeTreasury = "0202020202020202020202020202020202020202"
RoyaltyFeePercent = 5
PauseMarket = true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:9999" || !cfg.PauseMarket || cfg.RoyaltyFeePercent != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.AdminAddresses) != 1 {
		t.Fatalf("admin addresses not parsed: %+v", cfg.AdminAddresses)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{RPCAddress: "127.0.0.1:8645"}},
		{name: "missing rpc address", cfg: Config{}, wantErr: true},
		{name: "royalty too high", cfg: Config{RPCAddress: "x:1", RoyaltyFeePercent: 101}, wantErr: true},
		{name: "bad admin address", cfg: Config{RPCAddress: "x:1", AdminAddresses: []string{"nothex"}}, wantErr: true},
		{name: "bad treasury", cfg: Config{RPCAddress: "x:1", FeeTreasury: "0x1234"}, wantErr: true},
		{name: "good treasury", cfg: Config{RPCAddress: "x:1", FeeTreasury: "0x0101010101010101010101010101010101010101"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
