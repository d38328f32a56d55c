package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/ini.v1"

	"echoline/internal/shared/types"
)

// LoadIni loads the echoline.ini behavior configuration into cfg, on top of
// the built-in defaults. A missing file is not an error: the client must be
// able to run with zero setup against the default localhost:12345 target.
func LoadIni(cfg *types.Config, fileName string) error {
	*cfg = *types.DefaultConfig()

	iniFile, err := ini.Load(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return nil
		}
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	applyEnvOverrides(cfg)
	return nil
}

func applyEnvOverrides(cfg *types.Config) {
	overrideFromEnvStr(&cfg.ClientConf.Host, "ECHOLINE_HOST")
	overrideFromEnvInt(&cfg.ClientConf.Port, "ECHOLINE_PORT")
}

// LoadEndpoints loads the endpoints.json address book. Entries without an ID
// get a generated UUID and the file is written back, so IDs stay stable
// across runs. A missing file yields an empty book instead of an error.
func LoadEndpoints(fileName string) ([]*types.EndpointProfile, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.EndpointProfile{}, nil
		}
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}

	var profiles []*types.EndpointProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal endpoints.json: %w", err)
	}

	var assigned bool
	for _, profile := range profiles {
		if profile.ID == "" {
			profile.ID = uuid.New().String()
			assigned = true
		}
	}
	if assigned {
		if err := SaveEndpoints(fileName, profiles); err != nil {
			return nil, fmt.Errorf("failed to save endpoints after assigning new IDs: %w", err)
		}
	}
	return profiles, nil
}

// SaveEndpoints writes the endpoint list back to endpoints.json.
func SaveEndpoints(fileName string, profiles []*types.EndpointProfile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal endpoint profiles: %w", err)
	}
	return os.WriteFile(fileName, data, 0644)
}

// ResolveTarget turns the loaded configuration into one host:port address.
// Precedence: the -addr override, then a named address-book entry, then the
// ini/env configured host and port.
func ResolveTarget(cfg *types.Config, profiles []*types.EndpointProfile, endpointName, addrOverride string) (string, error) {
	if addrOverride != "" {
		if _, _, err := net.SplitHostPort(addrOverride); err != nil {
			return "", fmt.Errorf("invalid -addr value %q: %w", addrOverride, err)
		}
		return addrOverride, nil
	}

	if endpointName != "" {
		for _, profile := range profiles {
			if profile.Remarks == endpointName || profile.ID == endpointName {
				return net.JoinHostPort(profile.Host, strconv.Itoa(profile.Port)), nil
			}
		}
		return "", fmt.Errorf("endpoint %q not found in address book", endpointName)
	}

	return net.JoinHostPort(cfg.ClientConf.Host, strconv.Itoa(cfg.ClientConf.Port)), nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvStr(target *string, envName string) {
	envValue := strings.TrimSpace(os.Getenv(envName))
	if envValue != "" {
		*target = envValue
	}
}
