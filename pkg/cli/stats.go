package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/selfheal/pkg/cache"
)

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "Show healed-locator statistics from a persisted cache",
	Action: func(c *cli.Context) error {
		entries, err := loadEntries(c.String("cache"))
		if err != nil {
			return err
		}

		if c.Bool("json") {
			out := struct {
				CachedLocators int           `json:"cached_locators"`
				Entries        []cache.Entry `json:"entries"`
			}{CachedLocators: len(entries), Entries: entries}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("Cached locators: %d\n", len(entries))
		if len(entries) == 0 {
			return nil
		}

		var hits, strikes int
		for _, e := range entries {
			hits += e.HitCount
			strikes += e.Strikes
		}
		fmt.Printf("Total cache hits: %d\n", hits)
		if strikes > 0 {
			fmt.Printf("Entries with strikes: %d\n", strikes)
		}
		return nil
	},
}

var cacheCommand = &cli.Command{
	Name:  "cache",
	Usage: "Inspect or reset the healing cache",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List healed-locator mappings",
			Action: func(c *cli.Context) error {
				entries, err := loadEntries(c.String("cache"))
				if err != nil {
					return err
				}

				if c.Bool("json") {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ORIGINAL\tHEALED\tCONFIDENCE\tHITS\tVALIDATED")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\n",
						e.Original, e.Healed, e.Confidence, e.HitCount,
						e.LastValidatedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			},
		},
		{
			Name:  "clear",
			Usage: "Remove every cached healed locator",
			Action: func(c *cli.Context) error {
				store, closeStore, err := openStore(c.String("cache"))
				if err != nil {
					return err
				}
				defer closeStore()

				if err := store.Save(nil); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Println("Healing cache cleared")
				return nil
			},
		},
	},
}

// openStore picks the store backend by file extension: .db/.sqlite
// opens SQLite, anything else is the JSON file store.
func openStore(path string) (cache.Store, func(), error) {
	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite") {
		s, err := cache.NewSQLStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	return cache.NewFileStore(path), func() {}, nil
}

func loadEntries(path string) ([]cache.Entry, error) {
	store, closeStore, err := openStore(path)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.Load()
}
