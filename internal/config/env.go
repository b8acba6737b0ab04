package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// EnvOverride records one environment variable applied to the config.
type EnvOverride struct {
	EnvVar string `json:"envVar"`
	Path   string `json:"path"`
	Value  string `json:"value"`
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
)

type envMapping struct {
	path string
	kind valueKind
}

// envVarMappings maps BURROW_* variables to config paths.
var envVarMappings = map[string]envMapping{
	"BURROW_SERVER_ADDR":               {"server.addr", kindString},
	"BURROW_SERVER_READ_TIMEOUT_MS":    {"server.readTimeoutMs", kindInt},
	"BURROW_SERVER_WRITE_TIMEOUT_MS":   {"server.writeTimeoutMs", kindInt},
	"BURROW_SERVER_IDLE_TIMEOUT_MS":    {"server.idleTimeoutMs", kindInt},
	"BURROW_SERVER_MAX_BODY_BYTES":     {"server.maxBodyBytes", kindString},
	"BURROW_SERVER_MAX_RESPONSE_BYTES": {"server.maxResponseBytes", kindString},
	"BURROW_SERVER_READ_CHUNK_BYTES":   {"server.readChunkBytes", kindString},
	"BURROW_SERVER_KEEP_ALIVE":         {"server.keepAlive", kindBool},
	"BURROW_LOG_LEVEL":                 {"logging.level", kindString},
	"BURROW_LOG_FORMAT":                {"logging.format", kindString},
	"BURROW_LOG_FILE":                  {"logging.file", kindString},
	"BURROW_ROUTES_FILE":               {"routes.file", kindString},
	"BURROW_SESSIONS_ENABLED":          {"sessions.enabled", kindBool},
	"BURROW_SESSIONS_BACKEND":          {"sessions.backend", kindString},
	"BURROW_SESSIONS_PATH":             {"sessions.path", kindString},
	"BURROW_SESSIONS_TTL_SECONDS":      {"sessions.ttlSeconds", kindInt},
	"BURROW_COMPRESSION_ENABLED":       {"compression.enabled", kindBool},
	"BURROW_COMPRESSION_MIN_BYTES":     {"compression.minBytes", kindInt},
	"BURROW_AUTH_USERS_FILE":           {"auth.usersFile", kindString},
	"BURROW_AUTH_PATTERN":              {"auth.pattern", kindString},
	"BURROW_AUTH_ATTEMPTS_PER_MINUTE":  {"auth.attemptsPerMinute", kindInt},
}

// GetSupportedEnvVars lists every variable applyEnvOverrides reads, sorted.
func GetSupportedEnvVars() []string {
	vars := make([]string, 0, len(envVarMappings))
	for name := range envVarMappings {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}

// EnvVarPath returns the config path a variable sets, or "" for unknown names.
func EnvVarPath(name string) string {
	return envVarMappings[name].path
}

// applyEnvOverrides applies set variables to cfg. Values that do not parse
// for their field are skipped and not reported.
func applyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride
	for _, name := range GetSupportedEnvVars() {
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		m := envVarMappings[name]

		var value interface{}
		switch m.kind {
		case kindInt:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			value = n
		case kindBool:
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			value = b
		default:
			value = raw
		}

		if applyOverride(cfg, m.path, value) {
			overrides = append(overrides, EnvOverride{EnvVar: name, Path: m.path, Value: raw})
		}
	}
	return overrides
}

// applyOverride sets the field at a dotted path. It returns false for
// unknown paths and mismatched value types.
func applyOverride(cfg *Config, path string, value interface{}) bool {
	parts := strings.Split(path, ".")
	if len(parts) != 2 {
		return false
	}

	setString := func(dst *string) bool {
		s, ok := value.(string)
		if ok {
			*dst = s
		}
		return ok
	}
	setInt := func(dst *int) bool {
		n, ok := value.(int)
		if ok {
			*dst = n
		}
		return ok
	}
	setBool := func(dst *bool) bool {
		b, ok := value.(bool)
		if ok {
			*dst = b
		}
		return ok
	}

	switch parts[0] {
	case "server":
		switch parts[1] {
		case "addr":
			return setString(&cfg.Server.Addr)
		case "readTimeoutMs":
			return setInt(&cfg.Server.ReadTimeoutMs)
		case "writeTimeoutMs":
			return setInt(&cfg.Server.WriteTimeoutMs)
		case "idleTimeoutMs":
			return setInt(&cfg.Server.IdleTimeoutMs)
		case "maxBodyBytes":
			return setString(&cfg.Server.MaxBodyBytes)
		case "maxResponseBytes":
			return setString(&cfg.Server.MaxResponseBytes)
		case "readChunkBytes":
			return setString(&cfg.Server.ReadChunkBytes)
		case "keepAlive":
			return setBool(&cfg.Server.KeepAlive)
		}
	case "logging":
		switch parts[1] {
		case "level":
			return setString(&cfg.Logging.Level)
		case "format":
			return setString(&cfg.Logging.Format)
		case "file":
			return setString(&cfg.Logging.File)
		}
	case "routes":
		if parts[1] == "file" {
			return setString(&cfg.Routes.File)
		}
	case "sessions":
		switch parts[1] {
		case "enabled":
			return setBool(&cfg.Sessions.Enabled)
		case "backend":
			return setString(&cfg.Sessions.Backend)
		case "path":
			return setString(&cfg.Sessions.Path)
		case "ttlSeconds":
			return setInt(&cfg.Sessions.TTLSeconds)
		}
	case "compression":
		switch parts[1] {
		case "enabled":
			return setBool(&cfg.Compression.Enabled)
		case "minBytes":
			return setInt(&cfg.Compression.MinBytes)
		}
	case "auth":
		switch parts[1] {
		case "usersFile":
			return setString(&cfg.Auth.UsersFile)
		case "pattern":
			return setString(&cfg.Auth.Pattern)
		case "attemptsPerMinute":
			return setInt(&cfg.Auth.AttemptsPerMinute)
		}
	}
	return false
}
