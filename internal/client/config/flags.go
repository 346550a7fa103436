package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// os.Args is filtered with flagx.FilterArgs so flags owned by other layers
// are left alone.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-n", "-k", "-i", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "local cache database file")
	fs.StringVar(&cfg.TenantID, "n", cfg.TenantID, "tenant id")
	fs.StringVar(&cfg.AccessToken, "k", cfg.AccessToken, "access token")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	syncOverlap := fs.Int("o", int(cfg.SyncOverlap.Seconds()), "delta pull overlap (in seconds)")
	tables := fs.String("l", strings.Join(cfg.Tables, ","), "tables to keep in sync")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.SyncOverlap = time.Duration(*syncOverlap) * time.Second
	cfg.Tables = flagx.SplitList(*tables)
}
