package banner

import (
	"fmt"

	"parley/pkg/config"
)

const banner = `
██████╗  █████╗ ██████╗ ██╗     ███████╗██╗   ██╗
██╔══██╗██╔══██╗██╔══██╗██║     ██╔════╝╚██╗ ██╔╝
██████╔╝███████║██████╔╝██║     █████╗   ╚████╔╝
██╔═══╝ ██╔══██║██╔══██╗██║     ██╔══╝    ╚██╔╝
██║     ██║  ██║██║  ██║███████╗███████╗   ██║
╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚══════╝   ╚═╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(cfg *config.Config, addr, dbPath, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config:   %s\n", source)
	}

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/users' -d '{\"username\":\"ada\"}'\n", addr)
	fmt.Printf("curl -H 'X-User-ID: <id>' 'http://localhost%s/v1/rooms'\n", addr)

	fmt.Println("\n== Production? ================================================")
	if cfg != nil && cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if cfg != nil && len(cfg.Security.CORS.AllowedOrigins) > 0 {
		fmt.Printf("- CORS: %d allowed origin(s)\n", len(cfg.Security.CORS.AllowedOrigins))
	} else {
		fmt.Println("- CORS: no origins allowed (browser clients will be blocked)")
	}
	if cfg != nil && cfg.Outbox.Disabled {
		fmt.Println("- Outbox: disabled (notifications are live-only)")
	} else {
		fmt.Println("- Outbox: enabled")
	}
	fmt.Println("- Run behind a gateway that authenticates X-User-ID")

	fmt.Println("\n== Logs: ======================================================")
}
