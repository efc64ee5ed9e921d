package commands

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandeepkv93/calbill/internal/model"
)

type Type string

const (
	TypeHelp           Type = "help"
	TypeAuth           Type = "auth"
	TypeLogout         Type = "logout"
	TypeCalendars      Type = "calendars"
	TypeSync           Type = "sync"
	TypeCycleCreate    Type = "cycle create"
	TypeCycleList      Type = "cycle list"
	TypeCycleShow      Type = "cycle show"
	TypeCycleAssign    Type = "cycle assign"
	TypeCycleUnassign  Type = "cycle unassign"
	TypeGenerate       Type = "generate"
	TypeInvoicesList   Type = "invoices list"
	TypeInvoicesDelete Type = "invoices delete"
	TypeInvoicesExport Type = "invoices export"
	TypeProfile        Type = "profile"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

const Usage = `usage: calbill <command> [flags]

  auth                                 authorize Google Calendar access
  logout                               remove the stored token
  calendars                            list calendars visible to the account
  sync --start D --end D [--calendar ID] [--ics PATH|URL] [--watch [--cron EXPR]]
  cycle create NAME --start D --end D --rate R [--client-name ..] [--client-address ..] [--client-tax-id ..]
  cycle list
  cycle show ID
  cycle assign ID [--select EXPR]
  cycle unassign ID SOURCE_ID...
  generate ID [--detailed] [--rate R] [--invoice-date D] [--due-days N] [--preview]
  invoices list
  invoices delete NUMBER [--yes]
  invoices export PATH.xlsx
  profile [--full-name ..] [--address ..] [--tax-id ..] [--payment ..] [--account-name ..]
          [--account-number ..] [--bank-code ..] [--bank-name ..] [--account-type ..]

Dates are YYYY-MM-DD in the configured timezone.`

type SyncArgs struct {
	Start      time.Time
	End        time.Time
	CalendarID string
	ICS        string
	Watch      bool
	Cron       string
}

type CycleCreateArgs struct {
	Name   string
	Start  time.Time
	End    time.Time
	Rate   decimal.Decimal
	Client model.ClientInfo
}

type CycleArgs struct {
	ID int64
}

type CycleAssignArgs struct {
	ID int64
	// Selection is empty when the interactive picker should be used.
	Selection string
}

type CycleUnassignArgs struct {
	ID        int64
	SourceIDs []string
}

type GenerateArgs struct {
	CycleID     int64
	Format      model.InvoiceFormat
	Rate        decimal.Decimal
	InvoiceDate time.Time
	// DueDays is nil when the configured default applies.
	DueDays *int
	Preview bool
}

type InvoiceArgs struct {
	Number int64
	Yes    bool
}

type ExportArgs struct {
	Path string
}

// ProfileArgs holds only the fields given on the command line. A nil field
// keeps the stored value.
type ProfileArgs struct {
	FullName            *string
	Address             *string
	TaxID               *string
	PaymentInstructions *string
	AccountName         *string
	AccountNumber       *string
	BankCode            *string
	BankName            *string
	AccountType         *string
}

func (p ProfileArgs) Empty() bool {
	return p == ProfileArgs{}
}

// Apply merges the given fields into profile.
func (p ProfileArgs) Apply(profile model.BillingProfile) model.BillingProfile {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&profile.FullName, p.FullName)
	set(&profile.Address, p.Address)
	set(&profile.TaxID, p.TaxID)
	set(&profile.PaymentInstructions, p.PaymentInstructions)
	set(&profile.AccountName, p.AccountName)
	set(&profile.AccountNumber, p.AccountNumber)
	set(&profile.BankCode, p.BankCode)
	set(&profile.BankName, p.BankName)
	set(&profile.AccountType, p.AccountType)
	return profile
}

type Command struct {
	Type          Type
	Raw           string
	Sync          *SyncArgs
	CycleCreate   *CycleCreateArgs
	Cycle         *CycleArgs
	CycleAssign   *CycleAssignArgs
	CycleUnassign *CycleUnassignArgs
	Generate      *GenerateArgs
	Invoice       *InvoiceArgs
	Export        *ExportArgs
	Profile       *ProfileArgs
}

// Parse turns process arguments (without the program name) into a Command.
func Parse(args []string) (Command, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	raw := strings.Join(args, " ")
	head := strings.ToLower(args[0])
	rest := args[1:]

	switch head {
	case "help", "-h", "--help":
		return Command{Type: TypeHelp, Raw: raw}, nil
	case string(TypeAuth), string(TypeLogout), string(TypeCalendars):
		if len(rest) > 0 {
			return Command{}, invalid("%s takes no arguments", head)
		}
		return Command{Type: Type(head), Raw: raw}, nil
	case string(TypeSync):
		return parseSync(raw, rest)
	case "cycle":
		return parseCycle(raw, rest)
	case string(TypeGenerate):
		return parseGenerate(raw, rest)
	case "invoices":
		return parseInvoices(raw, rest)
	case string(TypeProfile):
		return parseProfile(raw, rest)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseSync(raw string, args []string) (Command, error) {
	fs := newFlagSet("sync")
	start := fs.String("start", "", "")
	end := fs.String("end", "", "")
	calendarID := fs.String("calendar", "", "")
	ics := fs.String("ics", "", "")
	watch := fs.Bool("watch", false, "")
	cron := fs.String("cron", "", "")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return Command{}, err
	}
	if len(positional) > 0 {
		return Command{}, invalid("sync: unexpected argument %q", positional[0])
	}
	out := SyncArgs{CalendarID: strings.TrimSpace(*calendarID), ICS: strings.TrimSpace(*ics), Watch: *watch, Cron: strings.TrimSpace(*cron)}
	if out.Start, err = model.ParseDate("start", *start); err != nil {
		return Command{}, wrapInvalid(err)
	}
	if out.End, err = model.ParseDate("end", *end); err != nil {
		return Command{}, wrapInvalid(err)
	}
	if out.End.Before(out.Start) {
		return Command{}, invalid("sync: --end is before --start")
	}
	if out.Cron != "" && !out.Watch {
		return Command{}, invalid("sync: --cron requires --watch")
	}
	return Command{Type: TypeSync, Raw: raw, Sync: &out}, nil
}

func parseCycle(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("cycle requires a subcommand: create, list, show, assign, unassign")
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]
	switch sub {
	case "create":
		return parseCycleCreate(raw, rest)
	case "list":
		if len(rest) > 0 {
			return Command{}, invalid("cycle list takes no arguments")
		}
		return Command{Type: TypeCycleList, Raw: raw}, nil
	case "show":
		if len(rest) != 1 {
			return Command{}, invalid("cycle show requires a cycle id")
		}
		id, err := parseID("cycle id", rest[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeCycleShow, Raw: raw, Cycle: &CycleArgs{ID: id}}, nil
	case "assign":
		fs := newFlagSet("cycle assign")
		sel := fs.String("select", "", "")
		positional, err := parseInterleaved(fs, rest)
		if err != nil {
			return Command{}, err
		}
		if len(positional) != 1 {
			return Command{}, invalid("cycle assign requires a cycle id")
		}
		id, err := parseID("cycle id", positional[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeCycleAssign, Raw: raw, CycleAssign: &CycleAssignArgs{ID: id, Selection: strings.TrimSpace(*sel)}}, nil
	case "unassign":
		if len(rest) < 2 {
			return Command{}, invalid("cycle unassign requires a cycle id and at least one event id")
		}
		id, err := parseID("cycle id", rest[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeCycleUnassign, Raw: raw, CycleUnassign: &CycleUnassignArgs{ID: id, SourceIDs: rest[1:]}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported cycle subcommand: %s", sub)}
	}
}

func parseCycleCreate(raw string, args []string) (Command, error) {
	fs := newFlagSet("cycle create")
	start := fs.String("start", "", "")
	end := fs.String("end", "", "")
	rate := fs.String("rate", "", "")
	clientName := fs.String("client-name", "", "")
	clientAddress := fs.String("client-address", "", "")
	clientTaxID := fs.String("client-tax-id", "", "")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return Command{}, err
	}
	name := strings.TrimSpace(strings.Join(positional, " "))
	if name == "" {
		return Command{}, invalid("cycle create requires a name")
	}
	out := CycleCreateArgs{
		Name: name,
		Client: model.ClientInfo{
			Name:    strings.TrimSpace(*clientName),
			Address: strings.TrimSpace(*clientAddress),
			TaxID:   strings.TrimSpace(*clientTaxID),
		},
	}
	if out.Start, err = model.ParseDate("start", *start); err != nil {
		return Command{}, wrapInvalid(err)
	}
	if out.End, err = model.ParseDate("end", *end); err != nil {
		return Command{}, wrapInvalid(err)
	}
	if strings.TrimSpace(*rate) == "" {
		return Command{}, invalid("cycle create requires --rate")
	}
	if out.Rate, err = model.ParseRate(*rate); err != nil {
		return Command{}, wrapInvalid(err)
	}
	return Command{Type: TypeCycleCreate, Raw: raw, CycleCreate: &out}, nil
}

func parseGenerate(raw string, args []string) (Command, error) {
	fs := newFlagSet("generate")
	detailed := fs.Bool("detailed", false, "")
	rate := fs.String("rate", "", "")
	invoiceDate := fs.String("invoice-date", "", "")
	dueDays := fs.String("due-days", "", "")
	preview := fs.Bool("preview", false, "")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return Command{}, err
	}
	if len(positional) != 1 {
		return Command{}, invalid("generate requires a cycle id")
	}
	id, err := parseID("cycle id", positional[0])
	if err != nil {
		return Command{}, err
	}
	out := GenerateArgs{CycleID: id, Format: model.FormatSummary, Preview: *preview}
	if *detailed {
		out.Format = model.FormatDetailed
	}
	if strings.TrimSpace(*rate) != "" {
		if out.Rate, err = model.ParseRate(*rate); err != nil {
			return Command{}, wrapInvalid(err)
		}
	}
	if strings.TrimSpace(*invoiceDate) != "" {
		if out.InvoiceDate, err = model.ParseDate("invoice-date", *invoiceDate); err != nil {
			return Command{}, wrapInvalid(err)
		}
	}
	if strings.TrimSpace(*dueDays) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(*dueDays))
		if err != nil || n < 0 {
			return Command{}, invalid("--due-days must be a non-negative integer, got %q", *dueDays)
		}
		out.DueDays = &n
	}
	return Command{Type: TypeGenerate, Raw: raw, Generate: &out}, nil
}

func parseInvoices(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("invoices requires a subcommand: list, delete, export")
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]
	switch sub {
	case "list":
		if len(rest) > 0 {
			return Command{}, invalid("invoices list takes no arguments")
		}
		return Command{Type: TypeInvoicesList, Raw: raw}, nil
	case "delete":
		fs := newFlagSet("invoices delete")
		yes := fs.Bool("yes", false, "")
		positional, err := parseInterleaved(fs, rest)
		if err != nil {
			return Command{}, err
		}
		if len(positional) != 1 {
			return Command{}, invalid("invoices delete requires an invoice number")
		}
		n, err := parseID("invoice number", strings.TrimPrefix(positional[0], "#"))
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeInvoicesDelete, Raw: raw, Invoice: &InvoiceArgs{Number: n, Yes: *yes}}, nil
	case "export":
		if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
			return Command{}, invalid("invoices export requires an output path")
		}
		return Command{Type: TypeInvoicesExport, Raw: raw, Export: &ExportArgs{Path: rest[0]}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported invoices subcommand: %s", sub)}
	}
}

func parseProfile(raw string, args []string) (Command, error) {
	fs := newFlagSet("profile")
	fs.String("full-name", "", "")
	fs.String("address", "", "")
	fs.String("tax-id", "", "")
	fs.String("payment", "", "")
	fs.String("account-name", "", "")
	fs.String("account-number", "", "")
	fs.String("bank-code", "", "")
	fs.String("bank-name", "", "")
	fs.String("account-type", "", "")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return Command{}, err
	}
	if len(positional) > 0 {
		return Command{}, invalid("profile: unexpected argument %q", positional[0])
	}

	var out ProfileArgs
	targets := map[string]**string{
		"full-name":      &out.FullName,
		"address":        &out.Address,
		"tax-id":         &out.TaxID,
		"payment":        &out.PaymentInstructions,
		"account-name":   &out.AccountName,
		"account-number": &out.AccountNumber,
		"bank-code":      &out.BankCode,
		"bank-name":      &out.BankName,
		"account-type":   &out.AccountType,
	}
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		*targets[f.Name] = &v
	})
	return Command{Type: TypeProfile, Raw: raw, Profile: &out}, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseInterleaved allows positional arguments before, between and after
// flags.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s: %v", fs.Name(), err), Err: err}
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func parseID(what, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("%s must be a positive integer, got %q", what, value)
	}
	return id, nil
}

func invalid(format string, args ...any) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func wrapInvalid(err error) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: err.Error(), Err: err}
}
