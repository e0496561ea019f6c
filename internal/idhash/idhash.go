// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"macrokit-datalake/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(mode|tables|start_date|end_date|started_at_ns)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	mode domain.RunMode,
	tables []string,
	startDate, endDate time.Time,
	startedAt time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		string(mode),
		strings.Join(tables, ","),
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
		startedAt.UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
