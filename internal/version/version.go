package version

// Name identifies the service in logs, traces, and the root endpoint.
const Name = "trendpulse-api"

// Version is overridden at build time via -ldflags.
var Version = "dev"
