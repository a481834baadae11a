package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v3"

	"github.com/starford/othala/internal"
	"github.com/starford/othala/internal/canvas"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/skills"
	"github.com/starford/othala/internal/storage"
	vaultsync "github.com/starford/othala/internal/sync"
	"github.com/starford/othala/internal/todos"
	"github.com/starford/othala/internal/vault"
	pkgconfig "github.com/starford/othala/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "othala",
		Usage: "Local-first Markdown vault with a wikilink graph, TK todos, skills, and sync",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("OTHALA_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "vault",
				Usage: "Vault directory (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the vault HTTP server",
				Action: runServe,
			},
			{
				Name:  "build",
				Usage: "Build the index once and print a summary",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Machine-readable summary"},
				},
				Action: runBuild,
			},
			{
				Name:      "search",
				Usage:     "Search note titles and bodies",
				ArgsUsage: "<query>",
				Action:    runSearch,
			},
			{
				Name:  "todos",
				Usage: "List TK todo items",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pending", Usage: "Only unresolved items"},
					&cli.BoolFlag{Name: "json", Usage: "JSON output"},
				},
				Action: runTodos,
			},
			{
				Name:      "capture",
				Usage:     "Append a quick-capture todo",
				ArgsUsage: "<description>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "Slug of the note that prompted the todo"},
				},
				Action: runCapture,
			},
			{
				Name:      "resolve",
				Usage:     "Mark a todo resolved in its source file",
				ArgsUsage: "<slug> <line>",
				Action:    runResolve,
			},
			{
				Name:      "skills",
				Usage:     "List skills, or search them",
				ArgsUsage: "[query]",
				Action:    runSkills,
			},
			{
				Name:      "shorthand",
				Usage:     "Resolve shorthand: tk ... captures, anything else finds skills",
				ArgsUsage: "[text]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Interactive prompt"},
				},
				Action: runShorthandCmd,
			},
			{
				Name:  "canvas",
				Usage: "Emit the canvas snapshot JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "Write to file instead of stdout"},
				},
				Action: runCanvas,
			},
			{
				Name:  "sync",
				Usage: "Push or pull the vault against a sync backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Usage: "worker or catalog (overrides config)"},
				},
				Commands: []*cli.Command{
					{Name: "push", Usage: "Push all notes and the canvas snapshot", Action: runSyncPush},
					{Name: "pull", Usage: "Pull remote notes into the vault", Action: runSyncPull},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

// quietLogger keeps one-shot command output clean: warnings and errors
// only, on stderr.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func buildIndex(cfg *internal.Config) (*vault.Index, error) {
	idx := vault.New(cfg.Vault.Path, quietLogger())
	if err := idx.Build(); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return idx, nil
}

func buildSkills(cfg *internal.Config) (*skills.Index, error) {
	sk := skills.New(cfg.Vault.SkillsPath(), quietLogger())
	if err := sk.Build(); err != nil {
		return nil, fmt.Errorf("build skills: %w", err)
	}
	return sk, nil
}

// newService wires the minimal service used by one-shot commands: no
// query layer, no plugins. Callers decide whether to Rebuild first.
func newService(cfg *internal.Config) (*noteservice.Service, *storage.FS, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, err
	}
	logger := quietLogger()
	idx := vault.New(cfg.Vault.Path, logger)
	sk := skills.New(cfg.Vault.SkillsPath(), logger)
	svc := noteservice.NewService(store, idx, sk, nil, nil,
		noteservice.WithLogger(logger),
		noteservice.WithTodoFile(cfg.Vault.TodosFile),
	)
	return svc, store, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runBuild(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return err
	}
	sk, err := buildSkills(cfg)
	if err != nil {
		return err
	}
	list := todos.Scan(idx)

	if cmd.Bool("json") {
		summary := struct {
			Notes  int `json:"notes"`
			Tags   int `json:"tags"`
			Todos  int `json:"todos"`
			Skills int `json:"skills"`
		}{idx.Len(), len(idx.Tags()), list.Len(), sk.Len()}
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("indexed %d notes, %d tags, %d todos, %d skills\n",
		idx.Len(), len(idx.Tags()), list.Len(), sk.Len())
	return nil
}

func runSearch(_ context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("usage: othala search <query>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tTITLE\tTAGS")
	for _, note := range idx.Search(query) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", note.Slug, note.Title, strings.Join(note.Tags, ","))
	}
	return w.Flush()
}

func runTodos(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return err
	}

	list := todos.Scan(idx)
	items := list.Items()
	if cmd.Bool("pending") {
		items = list.Pending()
	}

	if cmd.Bool("json") {
		out, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NOTE\tLINE\tDESCRIPTION")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%d\t%s\n", item.SourceSlug, item.LineNo, item.Description)
	}
	return w.Flush()
}

func runCapture(_ context.Context, cmd *cli.Command) error {
	description := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if description == "" {
		return fmt.Errorf("usage: othala capture <description>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	line, err := todos.Append(cfg.Vault.Path, cfg.Vault.TodosFile, description, cmd.String("from"))
	if err != nil {
		return err
	}
	fmt.Println(line)
	return nil
}

func runResolve(_ context.Context, cmd *cli.Command) error {
	slug := cmd.Args().Get(0)
	lineArg := cmd.Args().Get(1)
	if slug == "" || lineArg == "" {
		return fmt.Errorf("usage: othala resolve <slug> <line>")
	}
	lineNo, err := strconv.Atoi(lineArg)
	if err != nil || lineNo < 1 {
		return fmt.Errorf("line must be a positive integer, got %q", lineArg)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	item := &todos.Item{SourceSlug: slug, LineNo: lineNo}
	if err := todos.Resolve(cfg.Vault.Path, item); err != nil {
		return err
	}
	if !item.Resolved {
		fmt.Printf("nothing to resolve at %s:%d\n", slug, lineNo)
		return nil
	}
	fmt.Printf("resolved %s:%d\n", slug, lineNo)
	return nil
}

func runSkills(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sk, err := buildSkills(cfg)
	if err != nil {
		return err
	}

	matches := sk.All()
	if query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " ")); query != "" {
		matches = sk.Search(query)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTRIGGERS\tDESCRIPTION")
	for _, s := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, strings.Join(s.Triggers, ","), s.Description)
	}
	return w.Flush()
}

func runShorthandCmd(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sk, err := buildSkills(cfg)
	if err != nil {
		return err
	}

	if cmd.Bool("interactive") {
		return runREPL(cfg, sk)
	}

	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("usage: othala shorthand <text> (or -i for a prompt)")
	}
	return resolveShorthand(cfg, sk, text)
}

// resolveShorthand runs one shorthand input: tk captures, anything else
// lists matching skills.
func resolveShorthand(cfg *internal.Config, sk *skills.Index, text string) error {
	if description, ok := todos.ParseCapture(text); ok {
		if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
			return fmt.Errorf("create vault dir: %w", err)
		}
		line, err := todos.Append(cfg.Vault.Path, cfg.Vault.TodosFile, description, "")
		if err != nil {
			return err
		}
		fmt.Println("captured:", line)
		return nil
	}

	matches := sk.ResolveShorthand(text)
	if len(matches) == 0 {
		fmt.Println("no matching skills")
		return nil
	}
	for _, s := range matches {
		fmt.Printf("%s (%s)\n    %s\n", s.Name, strings.Join(s.Triggers, ", "), s.Description)
	}
	return nil
}

func runREPL(cfg *internal.Config, sk *skills.Index) error {
	prompt := liner.NewLiner()
	defer prompt.Close()
	prompt.SetCtrlCAborts(true)

	// Tab completion over skill triggers plus the capture prefix.
	completions := []string{"tk "}
	for _, s := range sk.All() {
		completions = append(completions, s.Triggers...)
	}
	prompt.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range completions {
			if strings.HasPrefix(c, strings.ToLower(prefix)) {
				out = append(out, c)
			}
		}
		return out
	})

	if f, err := os.Open(historyFile()); err == nil {
		prompt.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				prompt.WriteHistory(f)
				f.Close()
			}
		}
	}()

	fmt.Println("othala shorthand: tk <text> captures a todo, anything else finds skills.")
	fmt.Println("Type 'exit' to quit.")

	for {
		input, err := prompt.Prompt("othala> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		prompt.AppendHistory(input)

		if err := resolveShorthand(cfg, sk, input); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".othala_history")
}

func runCanvas(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return err
	}

	data, err := canvas.EncodeSnapshot(canvas.BuildSnapshot(idx))
	if err != nil {
		return err
	}
	if out := cmd.String("out"); out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Printf("wrote %s\n", out)
		return nil
	}
	fmt.Println(string(data))
	return nil
}

// syncBackend picks the backend by flag, falling back to config. The
// returned closer is nil for backends without one.
func syncBackend(cfg *internal.Config, name string) (vaultsync.Backend, io.Closer, error) {
	if name == "" {
		name = cfg.Sync.Backend
	}
	switch name {
	case internal.SyncBackendWorker:
		return vaultsync.NewWorkerClient(cfg.Sync.WorkerURL, cfg.Sync.Token), nil, nil
	case internal.SyncBackendCatalog:
		catalog, err := vaultsync.NewCatalog(cfg.Sync.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		return catalog, catalog, nil
	case "":
		return nil, nil, fmt.Errorf("no sync backend configured; set sync.backend or pass --backend")
	default:
		return nil, nil, fmt.Errorf("unknown sync backend %q", name)
	}
}

func runSyncPush(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	backend, closer, err := syncBackend(cfg, cmd.String("backend"))
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	svc, _, err := newService(cfg)
	if err != nil {
		return err
	}
	if err := svc.Rebuild(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	pushed, err := svc.SyncPush(ctx, backend)
	if err != nil {
		return err
	}
	fmt.Printf("pushed %d notes\n", pushed)
	return nil
}

func runSyncPull(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	backend, closer, err := syncBackend(cfg, cmd.String("backend"))
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	svc, store, err := newService(cfg)
	if err != nil {
		return err
	}

	pulled, err := svc.SyncPull(ctx, backend)
	if err != nil {
		return err
	}
	fmt.Printf("pulled %d notes into %s\n", pulled, store.Root())
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, _, err := newService(cfg)
	if err != nil {
		return err
	}
	if err := svc.Rebuild(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	return mcpserver.New(svc).ServeStdio()
}
