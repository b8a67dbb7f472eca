// Package config loads and watches the uvdose configuration file.
//
// Top-level sections:
//   - library: dir, min_size_bytes, serialize_calls
//   - specification: source (path or s3://bucket/key), cache_dir, s3{region, endpoint, path_style}
//   - calculation: default_drive, default_efficiency, default_uvt215, default_d1_log, native_validation
//   - server: http_port, log_level, feed_interval
//   - history: backend (memory|sqlite), path, ttl, limit
//
// Load(path) reads the YAML file, applies defaults (resources/ library dir,
// 100% drive and efficiency, d1_log 18, port 5000, 1h history), then
// validates ranges and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Only the log level is meant to be
// applied live; the native library and catalog are startup-only.
package config
