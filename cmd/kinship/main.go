// Command kinship is a native harness around the contact store. The
// browser build in cmd/wasm is the primary surface; this binary works
// against the same snapshot format on a local directory, which makes it
// useful for inspecting exports and seeding test data.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	osfs "github.com/hack-pad/hackpadfs/os"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kinship-app/kinship/internal/blob"
	"github.com/kinship-app/kinship/internal/config"
	"github.com/kinship-app/kinship/internal/persist"
	"github.com/kinship-app/kinship/pkg/suggest"
)

var (
	configPath = flag.String("config", "./kinship.toml", "Path to config file")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `kinship v%s - contact relationship store

Usage: kinship [flags] <command> [args]

Commands:
  list                     List all contacts
  add <name> [notes]       Add a contact
  connect <a> <b> <label>  Connect two contacts by id
  export                   Write the interchange document to stdout
  import <file>            Merge an interchange document
  suggest                  Suggest connections from notes mentions
  stats                    Print contact and connection counts

Flags:
`, VERSION)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("kinship v%s\n", VERSION)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svc, err := openService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer svc.Close()

	if err := run(svc, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Fatal("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func openService(cfg *config.Config, logger *zap.Logger) (*persist.Service, error) {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	fs := osfs.NewFS()
	name, err := fs.FromOSPath(filepath.Join(dataDir, cfg.SnapshotName))
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	return persist.Open(blob.NewStore(fs, name, logger), logger)
}

func run(svc *persist.Service, command string, args []string) error {
	switch command {
	case "list":
		return cmdList(svc)
	case "add":
		return cmdAdd(svc, args)
	case "connect":
		return cmdConnect(svc, args)
	case "export":
		return cmdExport(svc)
	case "import":
		return cmdImport(svc, args)
	case "suggest":
		return cmdSuggest(svc)
	case "stats":
		return cmdStats(svc)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdList(svc *persist.Service) error {
	contacts, err := svc.ListContacts()
	if err != nil {
		return err
	}
	for _, c := range contacts {
		line := c.ID + "  " + c.Name
		if c.Notes != "" {
			line += "  (" + firstLine(c.Notes) + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func cmdAdd(svc *persist.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("add requires a name")
	}
	notes := ""
	if len(args) > 1 {
		notes = strings.Join(args[1:], " ")
	}
	c, err := svc.CreateContact(args[0], "", "", notes)
	if err != nil {
		return err
	}
	fmt.Println(c.ID)
	return nil
}

func cmdConnect(svc *persist.Service, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("connect requires: <fromID> <toID> <label>")
	}
	conn, err := svc.CreateConnection(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Println(conn.ID)
	return nil
}

func cmdExport(svc *persist.Service) error {
	data, err := svc.ExportJSON()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

func cmdImport(svc *persist.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("import requires a file path")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := svc.Import(data)
	if err != nil {
		return err
	}
	fmt.Printf("contacts: %d added, %d skipped\n", res.ContactsAdded, res.ContactsSkipped)
	fmt.Printf("connections: %d added, %d skipped\n", res.ConnectionsAdded, res.ConnectionsSkipped)
	for _, row := range res.Skipped {
		fmt.Printf("  skipped %s %s: %s\n", row.Kind, row.ID, row.Reason)
	}
	return nil
}

func cmdSuggest(svc *persist.Service) error {
	contacts, err := svc.ListContacts()
	if err != nil {
		return err
	}

	byID := make(map[string]string, len(contacts))
	people := make([]suggest.Person, 0, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c.Name
		people = append(people, suggest.Person{ID: c.ID, Name: c.Name, Notes: c.Notes})
	}

	suggestions := suggest.Suggest(people, func(aID, bID string) bool {
		exists, err := svc.ConnectionExists(aID, bID)
		return err == nil && exists
	})
	for _, s := range suggestions {
		fmt.Printf("%s <-> %s (%d mention(s))\n", byID[s.FromContactID], byID[s.ToContactID], len(s.Mentions))
	}
	return nil
}

func cmdStats(svc *persist.Service) error {
	contacts, err := svc.Store().CountContacts()
	if err != nil {
		return err
	}
	rows, err := svc.Store().CountConnections()
	if err != nil {
		return err
	}
	fmt.Println("contacts:    " + strconv.Itoa(contacts))
	fmt.Println("connections: " + strconv.Itoa(rows/2) + " (" + strconv.Itoa(rows) + " rows)")
	return nil
}
