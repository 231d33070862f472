package version

// Version is set at build time: -ldflags "-X github.com/hashmap-kz/colorclip/internal/version.Version=..."
var Version = "dev"
