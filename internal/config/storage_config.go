package config

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type StorageConfig interface {
	GetSessionStore() string
	GetDatabaseURL() string
	GetRedisURL() string
}

// GetSessionStore returns memory, postgres or redis. Postgres also holds the
// user directory and the frame allow-list; the other backends keep those in
// memory.
func (c mainConfig) GetSessionStore() string {
	if s := normalise(c.v.SessionStore); s != "" {
		return s
	}
	return StoreMemory
}

func (c mainConfig) GetDatabaseURL() string {
	return c.v.DatabaseURL
}

func (c mainConfig) GetRedisURL() string {
	return c.v.RedisURL
}
