package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mosaicdocs/sourcemgr"
	"github.com/mosaicdocs/sourcemgr/pkg/form"
)

func main() {
	schemaDir := flag.String("schemas", "schemas", "directory of schema declaration files")
	dataDir := flag.String("data", ".sourcemgr", "directory for project and source files")
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	registry, err := sourcemgr.LoadRegistry(*schemaDir)
	if err != nil {
		log.Fatalf("load schemas: %v", err)
	}
	app, err := sourcemgr.New(registry, sourcemgr.WithDataDir(*dataDir))
	if err != nil {
		log.Fatalf("setup: %v", err)
	}

	ctx := context.Background()
	switch cmd := flag.Arg(0); cmd {
	case "types":
		listTypes(app)
	case "create":
		createProject(ctx, app, flag.Args()[1:])
	case "check":
		checkProject(ctx, app, flag.Args()[1:])
	case "recent":
		showRecent(app)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sourcemgr [flags] <command>

commands:
  types                list the available project types
  create -type CODE    create a project interactively
  check -type CODE ID  validate a stored project against its schema
  recent               list recent projects (pruning stale entries)`)
	flag.PrintDefaults()
}

func listTypes(app *sourcemgr.App) {
	for _, info := range app.Registry.Types() {
		fmt.Printf("%-6s %s\n", info.Code, info.DisplayName)
	}
}

func createProject(ctx context.Context, app *sourcemgr.App, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	typeCode := fs.String("type", "", "project type code")
	fs.Parse(args)
	if *typeCode == "" {
		log.Fatal("create: -type is required")
	}

	id, err := app.CreateProject(ctx, *typeCode)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	fmt.Printf("created project %s\n", id)
}

func checkProject(ctx context.Context, app *sourcemgr.App, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	typeCode := fs.String("type", "", "project type code")
	fs.Parse(args)
	if *typeCode == "" || fs.NArg() == 0 {
		log.Fatal("check: -type and a project id are required")
	}
	id := fs.Arg(0)

	payload, err := app.Projects.Load(ctx, *typeCode, id)
	if err != nil {
		log.Fatalf("check: %v", err)
	}
	state, err := app.NewForm(*typeCode, form.WithInitialValues(payload))
	if err != nil {
		log.Fatalf("check: %v", err)
	}

	if state.Valid() {
		fmt.Printf("project %s is valid\n", id)
		return
	}
	et, _ := app.Registry.Schema(*typeCode)
	for _, field := range et.Fields {
		result, ok := state.Result(field.Name)
		if ok && !result.Valid {
			fmt.Printf("  %s: %s\n", field.Name, result.Message)
		}
	}
	os.Exit(1)
}

func showRecent(app *sourcemgr.App) {
	pruned, err := app.Recent.Prune()
	if err != nil {
		log.Fatalf("recent: %v", err)
	}
	if pruned > 0 {
		fmt.Printf("pruned %d stale entries\n", pruned)
	}
	entries, err := app.Recent.List()
	if err != nil {
		log.Fatalf("recent: %v", err)
	}
	for _, entry := range entries {
		fmt.Printf("%s  %s  (%s)\n", entry.LastOpened.Format("2006-01-02 15:04"), entry.Name, entry.Path)
	}
}
