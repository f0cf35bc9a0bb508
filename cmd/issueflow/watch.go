package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/drafts"
)

// settleDelay lets a reporter finish writing before the file is imported.
const settleDelay = 200 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the drafts directory and import new reports as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Acquire(); err != nil {
			return err
		}
		defer func() { _ = store.Release() }()
		importer := &drafts.Importer{Store: store}

		// Catch up on anything written while nobody was watching.
		imported, err := importer.ImportAll()
		if err != nil {
			return err
		}
		for _, issue := range imported {
			fmt.Printf("Imported draft %s: %s\n", issue.ID, issue.Title)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(store.Paths().DraftsDir); err != nil {
			return fmt.Errorf("watch drafts directory: %w", err)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		fmt.Printf("Watching %s for new drafts (Ctrl+C to stop).\n", store.Paths().DraftsDir)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				time.Sleep(settleDelay)
				issue, err := importer.ImportDraft(event.Name)
				if err != nil {
					debug.Warnf("import %s: %v", event.Name, err)
					continue
				}
				if issue != nil {
					fmt.Printf("Imported draft %s: %s\n", issue.ID, issue.Title)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				debug.Warnf("watcher: %v", err)
			case <-sig:
				fmt.Println("\nStopped.")
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
