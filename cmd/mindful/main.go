// Command mindful manages bookmarks from a terminal using the same storage
// strategies as the extension.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abearman/mindful-sub000/client"
	"github.com/abearman/mindful-sub000/client/kv/sqlitekv"
	"github.com/abearman/mindful-sub000/client/local"
	"github.com/abearman/mindful-sub000/client/notify"
	"github.com/abearman/mindful-sub000/client/remote"
	"github.com/abearman/mindful-sub000/config"
	"github.com/abearman/mindful-sub000/models"
	"go.uber.org/zap"
)

const usage = `usage: mindful <command> [args]

commands:
  list                      print all groups and bookmarks as JSON
  add-group <name>          create an empty group
  add <group> <name> <url>  add a bookmark to a group, creating it if needed
  switch <local|remote>     move bookmarks to another storage type
  clear                     delete all bookmarks in the active storage
  watch                     print bookmarks whenever another context changes them
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zap.NewNop()
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "mindful:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, logger *zap.Logger, cmd string, args []string) error {
	db, err := sqlitekv.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	defer db.Close()

	opts := client.Options{
		Local:  local.NewStrategy(db),
		Cache:  db,
		Logger: logger.Named("client"),
	}
	userId := cfg.UserId

	if cfg.SignedIn() {
		tokens := remote.StaticToken(cfg.Token)
		api := remote.NewClient(remote.Options{
			BaseURL:     cfg.APIURL,
			Origin:      cfg.Origin,
			TokenSource: tokens,
			MaxRetries:  cfg.MaxRetries,
			HTTPClient:  &http.Client{Timeout: cfg.Timeout},
			Logger:      logger.Named("remote"),
		})
		opts.Remote = remote.NewStrategy(api)
		opts.Preferences = remote.NewPreferences(api)

		if cmd != "list" {
			n, err := notify.DialWS(ctx, notify.WSOptions{
				URL:         strings.TrimSuffix(cfg.APIURL, "/") + "/events",
				Origin:      cfg.Origin,
				Source:      cfg.Source,
				TokenSource: tokens,
				Logger:      logger.Named("notify"),
			})
			if err != nil {
				// changes still save; other contexts pick them up on their next reload
				logger.Warn("relay unavailable", zap.Error(err))
			} else {
				defer n.Close()
				opts.Notifier = n
			}
		}
	}

	manager := client.NewManager(opts)
	storageType, err := manager.Start(ctx, userId)
	if err != nil {
		return err
	}
	logger.Debug("storage selected", zap.String("storage_type", storageType.String()))

	switch cmd {
	case "list":
		return printGroups(ctx, manager)
	case "add-group":
		if len(args) != 1 {
			return errors.New("add-group takes one name")
		}
		return mutate(ctx, manager, func(groups []models.BookmarkGroup) []models.BookmarkGroup {
			return append(groups, models.NewGroup(args[0]))
		})
	case "add":
		if len(args) != 3 {
			return errors.New("add takes a group, a name and a url")
		}
		return mutate(ctx, manager, func(groups []models.BookmarkGroup) []models.BookmarkGroup {
			return addBookmark(groups, args[0], models.NewBookmark(args[1], args[2], time.Now().UnixMilli()))
		})
	case "switch":
		if len(args) != 1 {
			return errors.New("switch takes a storage type")
		}
		target, err := models.ParseStorageType(args[0])
		if err != nil {
			return err
		}
		return manager.SwitchStorage(ctx, target)
	case "clear":
		return manager.Delete(ctx)
	case "watch":
		manager.OnChange(func(res client.LoadResult) {
			writeJSON(res)
		})
		if err := manager.Listen(ctx); err != nil {
			return err
		}
		if err := printGroups(ctx, manager); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func printGroups(ctx context.Context, manager *client.Manager) error {
	res, err := manager.Load(ctx)
	if err != nil {
		return err
	}
	if res.Warning != "" {
		fmt.Fprintln(os.Stderr, "warning:", res.Warning)
	}
	writeJSON(res)
	return nil
}

func writeJSON(res client.LoadResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(models.StripAddNewGroup(res.Groups))
}

func mutate(ctx context.Context, manager *client.Manager, change func([]models.BookmarkGroup) []models.BookmarkGroup) error {
	res, err := manager.Load(ctx)
	if err != nil {
		return err
	}
	// saving over a fallback copy would overwrite data we could not read
	if res.Warning != "" {
		return errors.New(res.Warning)
	}
	return manager.Save(ctx, change(models.StripAddNewGroup(res.Groups)))
}

func addBookmark(groups []models.BookmarkGroup, groupName string, b models.Bookmark) []models.BookmarkGroup {
	for i := range groups {
		if groups[i].GroupName == groupName {
			groups[i].Bookmarks = append(groups[i].Bookmarks, b)
			return groups
		}
	}
	g := models.NewGroup(groupName)
	g.Bookmarks = append(g.Bookmarks, b)
	return append(groups, g)
}
