package config

import "time"

// config file
type (
	// Entry seeds the in-memory store at startup. Attribute keys map to one
	// or more string values; binary values are not representable in TOML and
	// belong in runtime adds instead.
	Entry struct {
		DN         string
		Attributes map[string][]string
	}

	// Rule binds an attribute description to a matching rule by name or OID.
	Rule struct {
		Attribute string
		Matching  string
	}

	LDAP struct {
		Enabled bool
		Listen  string
		// StartTLS parameters
		TLS         bool
		TLSCert     string
		TLSKey      string
		TLSCertPath string
		TLSKeyPath  string
	}

	LDAPS struct {
		Enabled bool
		Listen  string
		Cert    string
		Key     string
	}

	API struct {
		Cert        string
		Enabled     bool
		Internals   bool
		Key         string
		Listen      string
		SecretToken string
		TLS         bool
	}

	Behaviors struct {
		// OperationTimeout caps how long one operation may await the store;
		// zero disables the deadline.
		OperationTimeout time.Duration
		// MaxMessageBytes rejects messages whose declared length exceeds
		// this; zero means the built-in default.
		MaxMessageBytes int
	}

	Tracing struct {
		Enabled      bool
		GRPCEndpoint string
		HTTPEndpoint string
	}

	Config struct {
		API           API
		Behaviors     Behaviors
		Debug         bool
		Syslog        bool
		StructuredLog bool
		WatchConfig   bool
		LDAP          LDAP
		LDAPS         LDAPS
		BaseDN        string
		Entries       []Entry
		Rules         []Rule
		Tracing       Tracing
		ConfigFile    string
	}
)
