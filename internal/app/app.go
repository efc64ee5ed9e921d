// Package app wires configuration, storage, calendar sources and invoice
// rendering into the command handlers.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/commands"
	"github.com/sandeepkv93/calbill/internal/config"
	"github.com/sandeepkv93/calbill/internal/cycle"
	"github.com/sandeepkv93/calbill/internal/invoice"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/render"
	"github.com/sandeepkv93/calbill/internal/storage"
	"github.com/sandeepkv93/calbill/internal/update"
)

type PickerFunc func(ctx context.Context, assigner update.Assigner, cfg update.PickerConfig) (update.AssignPicker, error)

// Options overrides the terminal and collaborators. Zero values select the
// real implementations.
type Options struct {
	In       io.Reader
	Out      io.Writer
	Renderer invoice.Renderer
	Clock    func() time.Time
	Picker   PickerFunc
}

type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     storage.Repository
	cycles    *cycle.Manager
	generator *invoice.Generator
	loc       *time.Location
	in        *bufio.Reader
	out       io.Writer
	picker    PickerFunc
}

// Open creates the data directories, opens the database and builds the
// application.
func Open(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database()), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.OpenSQLite(cfg.Database())
	if err != nil {
		return nil, err
	}
	return New(cfg, logger, store, opts), nil
}

func New(cfg *config.Config, logger *zap.Logger, store storage.Repository, opts Options) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Picker == nil {
		opts.Picker = func(ctx context.Context, a update.Assigner, pc update.PickerConfig) (update.AssignPicker, error) {
			return update.RunAssignPicker(ctx, a, pc)
		}
	}
	loc := cfg.Location()
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.PDFWriter{
			Dir:     cfg.Invoices(),
			Options: render.PDFOptions{Timeout: cfg.RenderTimeout(), ExecPath: cfg.ChromePath},
			Logger:  logger.Named("render"),
		}
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		cycles: cycle.NewManager(store, logger, loc),
		generator: &invoice.Generator{
			Sequence: store,
			Store:    store,
			Renderer: renderer,
			Currency: cfg.Currency,
			Location: loc,
			Clock:    opts.Clock,
			Logger:   logger.Named("invoice"),
		},
		loc:    loc,
		in:     bufio.NewReader(opts.In),
		out:    opts.Out,
		picker: opts.Picker,
	}
}

func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) Handlers() commands.Handlers {
	return commands.Handlers{
		Auth:           a.auth,
		Logout:         a.logout,
		Calendars:      a.calendars,
		Sync:           a.sync,
		CycleCreate:    a.cycleCreate,
		CycleList:      a.cycleList,
		CycleShow:      a.cycleShow,
		CycleAssign:    a.cycleAssign,
		CycleUnassign:  a.cycleUnassign,
		Generate:       a.generate,
		InvoicesList:   a.invoicesList,
		InvoicesDelete: a.invoicesDelete,
		InvoicesExport: a.invoicesExport,
		Profile:        a.profile,
	}
}

func (a *App) cycleNames(ctx context.Context) (map[int64]string, error) {
	cycles, err := a.cycles.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(cycles))
	for _, c := range cycles {
		out[c.ID] = c.Name
	}
	return out, nil
}

func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *App) confirm(prompt string) bool {
	answer, err := a.readLine(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func (a *App) rateLabel(rate fmt.Stringer) string {
	return fmt.Sprintf("%s %s/h", rate.String(), a.cfg.Currency)
}

func period(c model.InvoiceCycle) string {
	return fmt.Sprintf("%s to %s", c.RangeStart.Format(model.DateLayout), c.RangeEnd.Format(model.DateLayout))
}
