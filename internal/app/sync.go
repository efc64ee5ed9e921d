package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/calendar"
	"github.com/sandeepkv93/calbill/internal/commands"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/scheduler"
	"github.com/sandeepkv93/calbill/internal/views"
)

const credentialsHelp = `Download OAuth2 credentials from the Google Cloud Console and save them to %s:
  1. Go to https://console.cloud.google.com/
  2. Create a new project or select an existing one
  3. Enable the Google Calendar API
  4. Create OAuth 2.0 credentials (Desktop app)
  5. Download the credentials JSON file
  6. Save it as %s`

func (a *App) googleSource() (*calendar.GoogleSource, error) {
	path := a.cfg.CredentialsFile()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(credentialsHelp, path, path)
	}
	return calendar.NewGoogleSource(path, a.cfg.TokenFile(), a.cfg.CalendarID, a.logger)
}

func (a *App) auth(ctx context.Context) (commands.Result, error) {
	src, err := a.googleSource()
	if err != nil {
		return commands.Result{}, err
	}
	if src.Authorized() {
		return commands.Result{Message: "Already authenticated. Run `calbill logout` to switch accounts."}, nil
	}
	fmt.Fprintf(a.out, "Open this URL in your browser and authorize calbill:\n\n  %s\n\n", src.AuthURL())
	code, err := a.readLine("Paste the authorization code: ")
	if err != nil {
		return commands.Result{}, err
	}
	if code == "" {
		return commands.Result{}, errors.New("no authorization code entered")
	}
	if err := src.Exchange(ctx, code); err != nil {
		return commands.Result{}, err
	}
	a.logger.Info("google calendar authorized", zap.String("token_file", a.cfg.TokenFile()))
	return commands.Result{Message: views.RenderNotice("ok", "Successfully authenticated!")}, nil
}

func (a *App) logout(context.Context) (commands.Result, error) {
	removed, err := calendar.Logout(a.cfg.TokenFile())
	if err != nil {
		return commands.Result{}, fmt.Errorf("remove token: %w", err)
	}
	if !removed {
		return commands.Result{Message: "No credentials to clear"}, nil
	}
	return commands.Result{Message: views.RenderNotice("ok", "Logged out successfully")}, nil
}

func (a *App) calendars(ctx context.Context) (commands.Result, error) {
	src, err := a.googleSource()
	if err != nil {
		return commands.Result{}, err
	}
	list, err := src.ListCalendars(ctx)
	if err != nil {
		return commands.Result{}, err
	}
	rows := make([]views.CalendarRowData, 0, len(list))
	for _, c := range list {
		rows = append(rows, views.CalendarRowData{ID: c.ID, Summary: c.Summary, Primary: c.Primary})
	}
	return commands.Result{Message: views.RenderCalendars(rows)}, nil
}

// syncSource picks the feed for a sync: an explicit --ics wins, then an
// explicit --calendar, then the configured ICS source, then Google.
func (a *App) syncSource(args commands.SyncArgs) (calendar.Source, string, error) {
	ics := args.ICS
	if ics == "" && args.CalendarID == "" {
		ics = a.cfg.ICSSource
	}
	if ics != "" {
		label := ics
		if strings.HasPrefix(ics, "http://") || strings.HasPrefix(ics, "https://") {
			label = "ICS feed"
		}
		return calendar.NewICSSource(ics, a.logger), label, nil
	}
	src, err := a.googleSource()
	if err != nil {
		return nil, "", err
	}
	id := args.CalendarID
	if id == "" {
		id = a.cfg.CalendarID
	}
	return src.WithCalendar(id), id, nil
}

func (a *App) syncWindow(args commands.SyncArgs) (time.Time, time.Time) {
	return model.DayStart(args.Start, a.loc), model.DayStart(args.End, a.loc).AddDate(0, 0, 1)
}

func (a *App) syncOnce(ctx context.Context, src calendar.Source, label string, args commands.SyncArgs) (string, error) {
	from, to := a.syncWindow(args)
	events, err := src.Fetch(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("fetch events: %w", err)
	}
	res, err := a.store.Sync(ctx, events)
	if err != nil {
		return "", err
	}
	a.logger.Info("sync finished",
		zap.String("source", label),
		zap.Int("fetched", len(events)),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
	)
	return views.RenderSyncSummary(views.SyncSummaryData{
		Source:    label,
		Window:    fmt.Sprintf("%s to %s", args.Start.Format(model.DateLayout), args.End.Format(model.DateLayout)),
		Fetched:   len(events),
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
	}), nil
}

func (a *App) sync(ctx context.Context, args commands.SyncArgs) (commands.Result, error) {
	src, label, err := a.syncSource(args)
	if err != nil {
		return commands.Result{}, err
	}
	if !args.Watch {
		summary, err := a.syncOnce(ctx, src, label, args)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{Message: summary}, nil
	}
	return a.watch(ctx, src, label, args)
}

// watch re-syncs on the cron schedule until ctx is cancelled. Failed runs
// are reported and the schedule continues.
func (a *App) watch(ctx context.Context, src calendar.Source, label string, args commands.SyncArgs) (commands.Result, error) {
	spec := args.Cron
	if spec == "" {
		spec = a.cfg.WatchCron
	}
	engine, err := scheduler.NewEngine(spec, a.loc, func(ctx context.Context) error {
		summary, err := a.syncOnce(ctx, src, label, args)
		if err != nil {
			fmt.Fprintln(a.out, views.RenderNotice("error", err.Error()))
			return err
		}
		fmt.Fprintln(a.out, summary)
		return nil
	}, a.logger, 8)
	if err != nil {
		return commands.Result{}, model.Invalid("cron", "%v", err)
	}

	if _, err := engine.RunNow(); err != nil {
		return commands.Result{}, err
	}
	engine.Start(ctx)
	fmt.Fprintf(a.out, "Watching %s on %q (next run %s). Press ctrl+c to stop.\n", label, spec, engine.Next().In(a.loc).Format("2006-01-02 15:04"))

	runs, failed := 0, 0
	tally := func(run scheduler.Run) {
		runs++
		if run.Err != nil {
			failed++
		}
	}
	stopped := func() (commands.Result, error) {
		return commands.Result{Message: fmt.Sprintf("Watch stopped after %d runs (%d failed).", runs, failed)}, nil
	}
	for {
		select {
		case <-ctx.Done():
			engine.Stop()
			for run := range engine.C() {
				tally(run)
			}
			return stopped()
		case run, ok := <-engine.C():
			if !ok {
				return stopped()
			}
			tally(run)
		}
	}
}
