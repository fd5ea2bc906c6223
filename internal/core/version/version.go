package version

// Version is set at build time with
// -ldflags "-X github.com/guiyumin/urduscribe/internal/core/version.Version=..."
var Version = "dev"
