/*
Package log provides structured logging for fleetctl using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("dispatcher")              │          │
	│  │  - WithCluster("cluster-abc123")             │          │
	│  │  - WithReplica("replica-xyz")                │          │
	│  │  - WithRequest("req-def456")                 │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Log Levels

  - Debug: Detailed debugging information, development only
  - Info: Default production level, general operational messages
  - Warn: Potential issues that may need attention
  - Error: Operation failures that need investigation
  - Fatal (via the Fatal helper): logs then calls os.Exit(1); use only
    for unrecoverable startup errors

# Usage

Initializing the logger:

	import "github.com/sahil-03/fleetctl/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("dispatcher started")
	log.Warn("queue backlog above threshold")
	log.Error("failed to reach replica")

Structured logging:

	log.Logger.Info().
		Str("cluster_id", clusterID).
		Int("replicas", 3).
		Msg("deployment completed")

Context loggers:

	clusterLog := log.WithCluster(clusterID)
	clusterLog.Info().Msg("deploying model")

	replicaLog := log.WithReplica(replica.InstanceID)
	replicaLog.Error().Err(err).Msg("health check failed")

	reqLog := log.WithRequest(requestID)
	reqLog.Info().Msg("request dispatched")

# Log Output Examples

JSON format (production):

	{"level":"info","component":"dispatcher","time":"2026-08-01T10:30:00Z","message":"request dispatched"}
	{"level":"error","cluster_id":"cluster-abc","error":"dial tcp: connection refused","time":"2026-08-01T10:30:01Z","message":"health check failed"}

Console format (development):

	2026-08-01T10:30:00Z INF request dispatched component=dispatcher
	2026-08-01T10:30:01Z ERR health check failed cluster_id=cluster-abc error="dial tcp: connection refused"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start via log.Init
  - Accessible from all packages without being passed around

Context Logger Pattern:
  - Child loggers carry fixed fields (component, cluster, replica, request)
  - Pass the child logger into a call chain instead of re-adding fields
  - Keeps correlated log lines searchable by id across components
*/
package log
