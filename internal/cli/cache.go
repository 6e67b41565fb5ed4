package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ttpmap/internal/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the LLM response cache",
	Long: `When cache.enabled is true, identical generator prompts are answered from a
memory-over-disk cache under cache.dir instead of calling the provider again.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached LLM response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c := cache.NewDiskCache(cfg.Cache.Dir, time.Duration(cfg.Cache.DiskTTLHours)*time.Hour)
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Cleared cache: %s\n", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
