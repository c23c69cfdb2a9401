package logger

import (
	"time"

	"go.uber.org/zap"
)

// Path is the changed file path being purged.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// URL is the absolute purge target.
func URL(v string) zap.Field {
	return zap.String("url", v)
}

// Method is the HTTP method sent to the edge.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Status is an HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Component tags the emitting module.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Count is a generic cardinality.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}
