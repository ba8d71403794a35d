// Package main hosts the catalog crawler entrypoint.
//
// Architecture overview:
//   - Phase 1 (previews): every listing page <base_url><listing_pattern> is fetched concurrently through the
//     retrying fetcher and parsed by internal/extract into PreviewRecords. The completeness gate writes
//     anime_previews.json sorted by id and, by default, stops the run when fewer than catalog.expected_previews
//     were collected.
//   - Phase 2 (details): the persisted preview file is read back, each preview's url is fetched, extracted and
//     normalized by internal/normalize, and the gate writes anime_data.json sorted by id.
//   - Fetching: one colly client per phase, a fresh User-Agent per attempt, randomized backoff on anything other
//     than 200 or 404, optional per-host token bucket. Retries only end on success, not-found or SIGINT/SIGTERM.
//   - Persistence & fanout: collections go to the configured BlobStore (local/memory/GCS). Records are optionally
//     mirrored into Postgres and a phase notice is published to Pub/Sub when a topic is configured
//     (pubsub.dry_run logs the notice instead).
//   - Observability: zap logs carry the run id; progress events are batched by a Hub into a log sink (live
//     done/total lines), a Prometheus sink and the phase store behind /api/phases, all served on
//     metrics.addr. Each phase runs inside an OpenTelemetry span whose context rides on the notice.
//
// Quick checklist:
//   - Configure env vars: CATALOG_CATALOG_BASE_URL, CATALOG_CATALOG_PAGES, CATALOG_CRAWLER_CONCURRENCY,
//     CATALOG_STORAGE_BACKEND, CATALOG_STORAGE_BASE_DIR, CATALOG_DB_DSN, CATALOG_PUBSUB_TOPIC_NAME,
//     CATALOG_METRICS_ADDR.
//   - Run locally: go run ./cmd/catalogcrawler -config config.yaml -debug
//   - Re-run only the details phase from an existing preview file: -phase details
package main
