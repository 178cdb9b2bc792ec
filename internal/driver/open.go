package driver

import (
	"context"
	"fmt"
)

// Open builds a driver from settings. kind selects the backend: "file",
// "bolt", or "redis". path is the data file for file/bolt; redisURL is used
// by the redis backend.
func Open(ctx context.Context, kind, path, redisURL string) (Driver, error) {
	switch kind {
	case "file":
		return NewFileDriver(path)
	case "bolt":
		return NewBoltDriver(path)
	case "redis":
		return NewRedisDriver(ctx, redisURL)
	default:
		return nil, fmt.Errorf("unknown driver %q (want file, bolt, or redis)", kind)
	}
}
