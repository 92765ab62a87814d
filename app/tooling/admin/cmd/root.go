// Package cmd contains the admin commands for the ledger.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/safeguard/fraudledger/foundation/blockchain/state"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage/bolt"
	"github.com/safeguard/fraudledger/foundation/blockchain/storage/disk"
	"github.com/safeguard/fraudledger/foundation/logger"
	"github.com/spf13/cobra"
)

var (
	ledgerPath    string
	storageKind   string
	ledgerKey     string
	difficulty    uint
	hashAlgorithm string
	verbose       bool
	serviceURL    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Administer the fraud registry ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(build string) {
	rootCmd.Version = build

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ledgerPath, "path", "p", "zblock/", "Path to the ledger storage.")
	rootCmd.PersistentFlags().StringVarP(&storageKind, "storage", "s", "disk", "Storage backend: disk or bolt.")
	rootCmd.PersistentFlags().StringVarP(&ledgerKey, "key", "k", state.DefaultKey, "Name the ledger is stored under.")
	rootCmd.PersistentFlags().UintVarP(&difficulty, "difficulty", "d", 4, "Difficulty used when sealing.")
	rootCmd.PersistentFlags().StringVar(&hashAlgorithm, "hash", "sha256", "Hash algorithm for a new ledger.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log ledger events.")
	rootCmd.PersistentFlags().StringVarP(&serviceURL, "url", "u", "http://localhost:8080", "Url of the ledger service.")
}

// openLedger opens the ledger in local storage. A read only ledger must
// already exist and is never written. The caller must call Shutdown on the
// returned state.
func openLedger(readOnly bool) (*state.State, error) {
	var strg storage.Storage

	dbPath := ledgerPath
	if storageKind == "bolt" {
		dbPath = filepath.Join(ledgerPath, "ledger.db")
	}

	if readOnly {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("no ledger at %s: %w", dbPath, err)
		}
	}

	switch storageKind {
	case "disk":
		d, err := disk.New(dbPath)
		if err != nil {
			return nil, err
		}
		strg = d

	case "bolt":
		open := bolt.New
		if readOnly {
			open = bolt.NewReadOnly
		}

		b, err := open(dbPath)
		if err != nil {
			return nil, err
		}
		strg = b

	default:
		return nil, fmt.Errorf("unknown storage %q, use disk or bolt", storageKind)
	}

	var ev state.EventHandler
	if verbose {
		log, err := logger.New("ADMIN")
		if err != nil {
			strg.Close()
			return nil, err
		}

		ev = func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...))
		}
	}

	st, err := state.New(state.Config{
		Storage:       strg,
		Key:           ledgerKey,
		Difficulty:    difficulty,
		HashAlgorithm: hashAlgorithm,
		EvHandler:     ev,
		ReadOnly:      readOnly,
	})
	if err != nil {
		strg.Close()
		return nil, err
	}

	return st, nil
}
