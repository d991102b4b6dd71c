// Command leadfinder discovers freelance web-development leads on Reddit.
//
// Architecture overview:
//   - Scan pass: internal/scan.Orchestrator searches every configured subreddit for every keyword,
//     keeps posts whose VADER compound polarity is positive, ranks them by score + 2*comments, and
//     inserts each subreddit's batch in one transaction keyed by the post URL, so repeated passes
//     never duplicate a lead. New leads are optionally announced on Pub/Sub and each pass can be
//     archived as JSON to local disk or GCS.
//   - Scheduling: `serve` runs a pass at startup and then every scan.interval (default 15m), or on
//     scan.cron when set. POST /trigger-scan runs an extra pass synchronously; passes may overlap.
//   - Storage: Postgres through pgx by default, or a single-file SQLite database for local runs.
//   - Plumbing: Viper config from a YAML file plus LEADFINDER_* env vars (REDDIT_CLIENT_ID,
//     REDDIT_CLIENT_SECRET, REDDIT_USER_AGENT, DATABASE_URL and PORT are honored too, and a .env
//     file is loaded first); zap logging; Prometheus metrics on /metrics; optional OpenTelemetry.
//
// Usage:
//
//	leadfinder serve --config config.yaml
//	leadfinder scan  --config config.yaml   # one pass, prints the result as JSON
package main
