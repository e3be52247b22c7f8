// Package config loads the campus server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// CAMPUS_CONFIG_FILE, then CAMPUS_* environment variables. The result is
// validated before it is returned.
//
// # Example file
//
//	server:
//	  port: "8080"
//	  health_port: "9090"
//	  allowed_origins: ["https://campus.example.edu"]
//	database:
//	  driver: postgres
//	  url: postgres://campus@localhost/campus?sslmode=disable
//	  max_conns: 20
//	redis:
//	  url: redis://localhost:6379/0
//	media:
//	  enabled: true
//	  bucket: campus-media
//	  endpoint: http://localhost:9000
//	  use_path_style: true
//	auth:
//	  session_ttl: 168h
//	observability:
//	  log_level: debug
//
// # Common environment overrides
//
//	CAMPUS_PORT="8080"
//	CAMPUS_DB_DRIVER="postgres"
//	CAMPUS_DB_URL="postgres://localhost/campus"
//	CAMPUS_REDIS_URL="redis://localhost:6379"
//	CAMPUS_S3_BUCKET="campus-media"
//	CAMPUS_LOG_LEVEL="debug"
//	CAMPUS_OTEL_ENABLED="true"
//
// WatchFile re-reads the YAML file on change so long-running processes can
// pick up new log levels without a restart.
package config
