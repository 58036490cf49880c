package toml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
debug = true
basedn = "dc=example,dc=com"

[ldap]
  enabled = true
  listen = "0.0.0.0:3893"

[[entries]]
  dn = "dc=example,dc=com"
  [entries.attributes]
    dc = ["example"]

[[rules]]
  attribute = "employeeNumber"
  matching = "integerMatch"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewConfigFromFile(t *testing.T) {
	path := writeConfig(t, "server.cfg", sampleConfig)

	cfg, err := NewConfig(path, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseDN != "dc=example,dc=com" {
		t.Errorf("basedn = %q", cfg.BaseDN)
	}
	if len(cfg.Entries) != 1 || cfg.Entries[0].DN != "dc=example,dc=com" {
		t.Errorf("entries = %+v", cfg.Entries)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Matching != "integerMatch" {
		t.Errorf("rules = %+v", cfg.Rules)
	}
	if cfg.ConfigFile != path {
		t.Errorf("configFile = %q", cfg.ConfigFile)
	}
}

func TestNewConfigArgsOverrideListen(t *testing.T) {
	path := writeConfig(t, "server.cfg", sampleConfig)

	cfg, err := NewConfig(path, map[string]interface{}{"--ldap": "127.0.0.1:10389"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LDAP.Listen != "127.0.0.1:10389" {
		t.Errorf("listen = %q", cfg.LDAP.Listen)
	}
}

func TestNewConfigMergesDirectory(t *testing.T) {
	dir := t.TempDir()
	base := `
basedn = "dc=example,dc=com"
[ldap]
  enabled = true
  listen = "0.0.0.0:3893"
[[entries]]
  dn = "dc=example,dc=com"
`
	extra := `
[[entries]]
  dn = "ou=people,dc=example,dc=com"
`
	if err := os.WriteFile(filepath.Join(dir, "00-base.cfg"), []byte(base), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "10-extra.cfg"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewConfig(dir, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Entries) != 2 {
		t.Fatalf("entries = %+v", cfg.Entries)
	}
}

func TestNewConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing basedn",
			"[ldap]\nenabled = true\nlisten = \"0.0.0.0:3893\"\n",
			"basedn",
		},
		{
			"missing listen",
			"basedn = \"dc=example,dc=com\"\n[ldap]\nenabled = true\n",
			"bind address",
		},
		{
			"ldaps without cert",
			"basedn = \"dc=example,dc=com\"\n[ldap]\nenabled = false\n[ldaps]\nenabled = true\nlisten = \"0.0.0.0:3894\"\n",
			"certificate",
		},
		{
			"entry outside basedn",
			sampleConfig + "\n[[entries]]\ndn = \"dc=other,dc=org\"\n",
			"outside basedn",
		},
		{
			"rule without matching",
			sampleConfig + "\n[[rules]]\nattribute = \"cn\"\n",
			"matching",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "server.cfg", tc.content)
			_, err := NewConfig(path, map[string]interface{}{})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewConfigMissingPath(t *testing.T) {
	if _, err := NewConfig(filepath.Join(t.TempDir(), "nope.cfg"), map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing config path")
	}
}
