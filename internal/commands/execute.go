package commands

import (
	"context"
	"fmt"
)

type Result struct {
	Message string
}

type Handlers struct {
	Auth           func(context.Context) (Result, error)
	Logout         func(context.Context) (Result, error)
	Calendars      func(context.Context) (Result, error)
	Sync           func(context.Context, SyncArgs) (Result, error)
	CycleCreate    func(context.Context, CycleCreateArgs) (Result, error)
	CycleList      func(context.Context) (Result, error)
	CycleShow      func(context.Context, CycleArgs) (Result, error)
	CycleAssign    func(context.Context, CycleAssignArgs) (Result, error)
	CycleUnassign  func(context.Context, CycleUnassignArgs) (Result, error)
	Generate       func(context.Context, GenerateArgs) (Result, error)
	InvoicesList   func(context.Context) (Result, error)
	InvoicesDelete func(context.Context, InvoiceArgs) (Result, error)
	InvoicesExport func(context.Context, ExportArgs) (Result, error)
	Profile        func(context.Context, ProfileArgs) (Result, error)
}

func Execute(ctx context.Context, cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeHelp:
		return Result{Message: Usage}, nil
	case TypeAuth:
		return call0(ctx, cmd.Type, handlers.Auth)
	case TypeLogout:
		return call0(ctx, cmd.Type, handlers.Logout)
	case TypeCalendars:
		return call0(ctx, cmd.Type, handlers.Calendars)
	case TypeSync:
		return call(ctx, cmd.Type, handlers.Sync, cmd.Sync)
	case TypeCycleCreate:
		return call(ctx, cmd.Type, handlers.CycleCreate, cmd.CycleCreate)
	case TypeCycleList:
		return call0(ctx, cmd.Type, handlers.CycleList)
	case TypeCycleShow:
		return call(ctx, cmd.Type, handlers.CycleShow, cmd.Cycle)
	case TypeCycleAssign:
		return call(ctx, cmd.Type, handlers.CycleAssign, cmd.CycleAssign)
	case TypeCycleUnassign:
		return call(ctx, cmd.Type, handlers.CycleUnassign, cmd.CycleUnassign)
	case TypeGenerate:
		return call(ctx, cmd.Type, handlers.Generate, cmd.Generate)
	case TypeInvoicesList:
		return call0(ctx, cmd.Type, handlers.InvoicesList)
	case TypeInvoicesDelete:
		return call(ctx, cmd.Type, handlers.InvoicesDelete, cmd.Invoice)
	case TypeInvoicesExport:
		return call(ctx, cmd.Type, handlers.InvoicesExport, cmd.Export)
	case TypeProfile:
		return call(ctx, cmd.Type, handlers.Profile, cmd.Profile)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func call0(ctx context.Context, t Type, fn func(context.Context) (Result, error)) (Result, error) {
	if fn == nil {
		return Result{}, missing(t)
	}
	return fn(ctx)
}

func call[A any](ctx context.Context, t Type, fn func(context.Context, A) (Result, error), args *A) (Result, error) {
	if fn == nil {
		return Result{}, missing(t)
	}
	if args == nil {
		return Result{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s: missing arguments", t)}
	}
	return fn(ctx, *args)
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
