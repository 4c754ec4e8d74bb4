// Package config holds process-wide, environment-driven configuration for
// the engine's runnable commands (resource_build, serve).
package config

import (
	"github.com/catalystcommunity/app-utils-go/env"
)

var (
	// ScanBudgetMs bounds how long a single scanner tick may run before
	// yielding back to the caller.
	ScanBudgetMs = env.GetEnvAsIntOrDefault("SCAN_BUDGET_MS", "50")

	// ServeBudgetMs is the configured request-serving tick budget. The
	// resource provider's ServeTick takes no budget, so nothing applies it.
	ServeBudgetMs = env.GetEnvAsIntOrDefault("SERVE_BUDGET_MS", "50")

	// ObjectStoreType selects the backing store for the resource provider's
	// virtual FS: "filesystem", "memory", or "s3".
	ObjectStoreType     = env.GetEnvOrDefault("OBJECT_STORE_TYPE", "filesystem")
	ObjectStoreBucket   = env.GetEnvOrDefault("OBJECT_STORE_BUCKET", "enginecore-resources")
	ObjectStoreBasePath = env.GetEnvOrDefault("OBJECT_STORE_BASE_PATH", "./resources")
	ObjectStorePrefix   = env.GetEnvOrDefault("OBJECT_STORE_PREFIX", "")

	// ObjectStorePackPath, if set, mounts a read-only resource pack (as
	// produced by resource_build) alongside the primary store at
	// ObjectStorePackMountPrefix.
	ObjectStorePackPath        = env.GetEnvOrDefault("OBJECT_STORE_PACK_PATH", "")
	ObjectStorePackMountPrefix = env.GetEnvOrDefault("OBJECT_STORE_PACK_MOUNT_PREFIX", "packs")

	// HotReloadEnabled toggles the fsnotify-backed watcher.
	HotReloadEnabled = env.GetEnvAsBoolOrDefault("HOT_RELOAD_ENABLED", "true")

	// DispatchWorkers overrides the worker-pool size; 0 means one per logical core.
	DispatchWorkers = env.GetEnvAsIntOrDefault("DISPATCH_WORKERS", "0")

	// FrameLifetimePageSize is the default page size (bytes) for the
	// render frame-lifetime allocator.
	FrameLifetimePageSize = env.GetEnvAsIntOrDefault("FRAME_LIFETIME_PAGE_SIZE", "4194304")

	// FramesInFlight is the number of historical frames the frame-lifetime
	// allocator tracks before recycling.
	FramesInFlight = env.GetEnvAsIntOrDefault("FRAMES_IN_FLIGHT", "2")

	// LogLevel mirrors the resource_build CLI's --log flag default.
	LogLevel = env.GetEnvOrDefault("LOG_LEVEL", "regular")
)
