package types

// EndpointProfile describes one named echo server endpoint.
// This is the core data structure of the configs/endpoints.json address book.
type EndpointProfile struct {
	ID      string `json:"id"`      // unique identifier (UUID), assigned on load when missing
	Remarks string `json:"remarks"` // user label, also usable as -endpoint selector
	Host    string `json:"host"`    // server address (hostname or IP)
	Port    int    `json:"port"`    // server port
}

// ClientConf contains the behavior configuration of the echo client.
type ClientConf struct {
	Host        string `ini:"host"`
	Port        int    `ini:"port"`
	DialTimeout int    `ini:"dial_timeout"` // seconds, 0 disables the dial timeout
	IOTimeout   int    `ini:"io_timeout"`   // seconds, 0 disables send/receive deadlines
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config is the unified configuration structure loaded from echoline.ini.
type Config struct {
	ClientConf `ini:"client"`
	LogConf    `ini:"log"`
}

// DefaultConfig returns the built-in configuration used when no ini file
// exists: the classic echo target on localhost:12345 with hardened timeouts.
func DefaultConfig() *Config {
	return &Config{
		ClientConf: ClientConf{
			Host:        "localhost",
			Port:        12345,
			DialTimeout: 5,
			IOTimeout:   10,
		},
		LogConf: LogConf{
			Level: "info",
		},
	}
}
