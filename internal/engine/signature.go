package engine

import (
	"strings"

	"querybatch/internal/domain"
)

// soloKeyPrefix namespaces the grouping key of configs with no declared
// output schema, so identical schema-less types still batch with each other
// while distinct ones never do.
const soloKeyPrefix = "__solo_"

// Signature derives an equivalence key from a config's declared output
// columns: name and type per field, in declared order (order-sensitive).
// Returns "" when no schema is declared.
func Signature(cfg *domain.QueryConfig) string {
	if cfg == nil || len(cfg.OutputFields) == 0 {
		return ""
	}
	parts := make([]string, len(cfg.OutputFields))
	for i, f := range cfg.OutputFields {
		parts[i] = f.Name + ":" + f.Type
	}
	return strings.Join(parts, "|")
}

// GroupingKey returns the union-batching key for a config: its signature,
// or a per-type solo bucket when no schema is declared.
func GroupingKey(cfg *domain.QueryConfig, typeName string) string {
	if sig := Signature(cfg); sig != "" {
		return sig
	}
	return soloKeyPrefix + typeName
}
