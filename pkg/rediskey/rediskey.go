package rediskey

import "fmt"

// Key namespaces shared across binaries. Keep these stable: the API
// server and the worker read each other's keys.
const (
	SequencePrefix = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildDailySequenceKey returns "seq:{prefix}:{day}", e.g. "seq:WD:260830".
func BuildDailySequenceKey(prefix, day string) string {
	return NamespaceKey(SequencePrefix, NamespaceKey(prefix, day))
}
