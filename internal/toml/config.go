package toml

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/ofiterev/ldapsdk-inmem/pkg/config"
)

// NewConfig reads the cli flags and config file
func NewConfig(location string, args map[string]interface{}) (*config.Config, error) {
	// Parse config-file into config{} struct
	cfg, err := parseConfigFile(location)
	if err != nil {
		return nil, err
	}

	// Handle parsed flags
	cfg, err = handleArgs(cfg, args)
	if err != nil {
		return nil, err
	}

	cfg, err = validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	cfg.ConfigFile = location

	return cfg, nil
}

func parseConfigFile(configFileLocation string) (*config.Config, error) {
	cfg := new(config.Config)
	// setup defaults
	cfg.LDAP.Enabled = true
	cfg.LDAPS.Enabled = false

	fInfo, err := os.Stat(configFileLocation)
	if err != nil {
		return cfg, fmt.Errorf("non-existent config path: %s", configFileLocation)
	}

	if fInfo.IsDir() { // multiple files in a directory
		rawCfgStruct := make(map[string]interface{})

		files, _ := os.ReadDir(configFileLocation)
		for _, f := range files {
			canonicalName := filepath.Join(configFileLocation, f.Name())

			bs, _ := os.ReadFile(canonicalName)
			var curRawCfgStruct interface{}
			if err := toml.Unmarshal(bs, &curRawCfgStruct); err != nil {
				return cfg, err
			}
			if err = mergeConfigs(&rawCfgStruct, curRawCfgStruct); err != nil {
				return cfg, err
			}
		}

		destbuf := new(bytes.Buffer)
		err = toml.NewEncoder(destbuf).Encode(rawCfgStruct)
		if err != nil {
			return cfg, err
		}
		merged := config.Config{}
		if _, err = toml.Decode(destbuf.String(), &merged); err != nil {
			return cfg, err
		}
		cfg = &merged
	} else {
		_, err = toml.DecodeFile(configFileLocation, cfg)
		if err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func mergeConfigs(config1 interface{}, config2 interface{}) error {
	var merger func(int, string, interface{}, interface{}) error
	merger = func(depth int, keyName string, cfg1 interface{}, cfg2 interface{}) error {
		switch element2 := cfg2.(type) {
		case map[string]interface{}:
			element2, ok := cfg2.(map[string]interface{})
			if !ok {
				return fmt.Errorf("config source: %s is not a map", keyName)
			}
			element1, ok := cfg1.(*map[string]interface{})
			if !ok {
				return fmt.Errorf("config dest: %s is not a map", keyName)
			}
			for k := range element2 {
				_, ok := (*element1)[k]
				if !ok {
					(*element1)[k] = element2[k]
				} else {
					asanarrayptr, ok := (*element1)[k].([]map[string]interface{})
					if ok {
						if err := merger(depth+1, k, &asanarrayptr, element2[k]); err != nil {
							return err
						}
						(*element1)[k] = asanarrayptr
					} else {
						asamapptr, ok := (*element1)[k].(map[string]interface{})
						if ok {
							if err := merger(depth+1, k, &asamapptr, element2[k]); err != nil {
								return err
							}
							(*element1)[k] = asamapptr
						} else {
							return fmt.Errorf("config dest: %s does not make a valid map/array ptr", keyName)
						}
					}
				}
			}
		case []map[string]interface{}:
			element2, ok := cfg2.([]map[string]interface{})
			if !ok {
				return fmt.Errorf("config source: %s is not a map array", keyName)
			}
			element1, ok := cfg1.(*[]map[string]interface{})
			if !ok {
				return fmt.Errorf("config dest: %s is not a map array", keyName)
			}
			for index := range element2 {
				*element1 = append(*element1, element2[index])
			}
		case string:
		case bool:
		case float64:
		case nil:
		default:
			log.Info().Str("type", reflect.TypeOf(element2).String()).Msg("Unknown element type found in configuration file. Ignoring.")
		}
		return nil
	}

	err := merger(0, "TOP", config1, config2)
	if err != nil {
		return err
	}
	return nil
}

func handleArgs(cfg *config.Config, args map[string]interface{}) (*config.Config, error) {
	// LDAP flags
	if ldap, ok := args["--ldap"].(string); ok && ldap != "" {
		cfg.LDAP.Enabled = true
		cfg.LDAP.Listen = ldap
	}

	// LDAPS flags
	if ldaps, ok := args["--ldaps"].(string); ok && ldaps != "" {
		cfg.LDAPS.Enabled = true
		cfg.LDAPS.Listen = ldaps
	}
	if ldapsCert, ok := args["--ldaps-cert"].(string); ok && ldapsCert != "" {
		cfg.LDAPS.Cert = ldapsCert
	}
	if ldapsKey, ok := args["--ldaps-key"].(string); ok && ldapsKey != "" {
		cfg.LDAPS.Key = ldapsKey
	}

	return cfg, nil
}

func validateConfig(cfg *config.Config) (*config.Config, error) {
	if !cfg.LDAP.Enabled && !cfg.LDAPS.Enabled {
		return cfg, fmt.Errorf("no server configuration found: please provide either LDAP or LDAPS configuration")
	}

	if cfg.LDAPS.Enabled {
		// LDAPS enabled - verify requirements (cert, key, listen)
		if len(cfg.LDAPS.Cert) == 0 || len(cfg.LDAPS.Key) == 0 {
			return cfg, fmt.Errorf("LDAPS was enabled but no certificate or key were specified: please disable LDAPS or use the 'cert' and 'key' options")
		}

		if len(cfg.LDAPS.Listen) == 0 {
			return cfg, fmt.Errorf("no LDAPS bind address was specified: please disable LDAPS or use the 'listen' option")
		}
	}

	if cfg.LDAP.Enabled {
		// LDAP enabled - verify listen
		if len(cfg.LDAP.Listen) == 0 {
			return cfg, fmt.Errorf("no LDAP bind address was specified: please disable LDAP or use the 'listen' option")
		}

		if cfg.LDAP.TLS && cfg.LDAP.TLSCert == "" && cfg.LDAP.TLSCertPath != "" {
			byteData, err := os.ReadFile(cfg.LDAP.TLSCertPath)
			cfg.LDAP.TLSCert = string(byteData)

			if err != nil {
				return cfg, fmt.Errorf("unable to read TLS certificate file")
			}
		}

		if cfg.LDAP.TLS && cfg.LDAP.TLSKey == "" && cfg.LDAP.TLSKeyPath != "" {
			byteData, err := os.ReadFile(cfg.LDAP.TLSKeyPath)
			cfg.LDAP.TLSKey = string(byteData)

			if err != nil {
				return cfg, fmt.Errorf("unable to read TLS key file")
			}
		}
	}

	if cfg.BaseDN == "" {
		return cfg, fmt.Errorf("no basedn was specified: please use the 'basedn' option")
	}

	for _, e := range cfg.Entries {
		if e.DN == "" {
			return cfg, fmt.Errorf("seed entry without a dn")
		}
		if !strings.HasSuffix(strings.ToLower(e.DN), strings.ToLower(cfg.BaseDN)) {
			return cfg, fmt.Errorf("seed entry %s is outside basedn %s", e.DN, cfg.BaseDN)
		}
	}

	for _, r := range cfg.Rules {
		if r.Attribute == "" || r.Matching == "" {
			return cfg, fmt.Errorf("matching rule overrides need both 'attribute' and 'matching'")
		}
	}

	return cfg, nil
}
