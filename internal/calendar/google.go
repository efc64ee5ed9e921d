package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/sandeepkv93/calbill/internal/model"
)

const maxPageSize = 250

// GoogleSource reads events from one Google calendar using a cached OAuth2
// token.
type GoogleSource struct {
	config     *oauth2.Config
	tokenFile  string
	calendarID string
	logger     *zap.Logger
}

func NewGoogleSource(credentialsFile, tokenFile, calendarID string, logger *zap.Logger) (*GoogleSource, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read %s (download OAuth client credentials from Google Cloud Console): %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(data, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSource{config: cfg, tokenFile: tokenFile, calendarID: calendarID, logger: logger.Named("google")}, nil
}

// WithCalendar returns a copy reading from another calendar.
func (g *GoogleSource) WithCalendar(id string) *GoogleSource {
	out := *g
	if id != "" {
		out.calendarID = id
	}
	return &out
}

func (g *GoogleSource) AuthURL() string {
	return g.config.AuthCodeURL("calbill", oauth2.AccessTypeOffline)
}

// Exchange trades the consent code for a token and caches it.
func (g *GoogleSource) Exchange(ctx context.Context, code string) error {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange auth code: %w", err)
	}
	return saveToken(g.tokenFile, tok)
}

func (g *GoogleSource) Authorized() bool {
	tok, err := loadToken(g.tokenFile)
	return err == nil && (tok.Valid() || tok.RefreshToken != "")
}

// Logout deletes the cached token. It reports whether one existed.
func Logout(tokenFile string) (bool, error) {
	err := os.Remove(tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GoogleSource) service(ctx context.Context) (*gcal.Service, func(), error) {
	tok, err := loadToken(g.tokenFile)
	if err != nil {
		return nil, nil, ErrNotAuthorized
	}
	ts := oauth2.ReuseTokenSource(tok, g.config.TokenSource(ctx, tok))
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, nil, fmt.Errorf("create calendar service: %w", err)
	}
	persist := func() {
		fresh, err := ts.Token()
		if err != nil || fresh.AccessToken == tok.AccessToken {
			return
		}
		if err := saveToken(g.tokenFile, fresh); err != nil {
			g.logger.Warn("could not cache refreshed token", zap.Error(err))
		}
	}
	return svc, persist, nil
}

func (g *GoogleSource) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	svc, persist, err := g.service(ctx)
	if err != nil {
		return nil, err
	}
	defer persist()

	out := make([]CalendarInfo, 0)
	err = svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			summary := item.Summary
			if summary == "" {
				summary = "Unnamed Calendar"
			}
			out = append(out, CalendarInfo{ID: item.Id, Summary: summary, Primary: item.Primary})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return out, nil
}

func (g *GoogleSource) Fetch(ctx context.Context, start, end time.Time) ([]model.RawEvent, error) {
	svc, persist, err := g.service(ctx)
	if err != nil {
		return nil, err
	}
	defer persist()

	items := make([]*gcal.Event, 0)
	call := svc.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxPageSize).
		Context(ctx)
	err = call.Pages(ctx, func(page *gcal.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", g.calendarID, err)
	}

	events, skipped, err := convertGoogleEvents(items)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("fetched events",
		zap.String("calendar_id", g.calendarID),
		zap.Int("count", len(events)),
		zap.Int("skipped_all_day", skipped),
	)
	return events, nil
}

// convertGoogleEvents keeps timed events only. Cancelled instances and
// all-day entries carry no billable time.
func convertGoogleEvents(items []*gcal.Event) ([]model.RawEvent, int, error) {
	out := make([]model.RawEvent, 0, len(items))
	skipped := 0
	for _, item := range items {
		if item == nil || item.Status == "cancelled" {
			continue
		}
		if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
			skipped++
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return nil, 0, fmt.Errorf("event %s start %q: %w", item.Id, item.Start.DateTime, err)
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return nil, 0, fmt.Errorf("event %s end %q: %w", item.Id, item.End.DateTime, err)
		}
		out = append(out, model.RawEvent{
			SourceID: item.Id,
			Title:    titleOrDefault(item.Summary),
			Start:    start,
			End:      end,
		})
	}
	return out, skipped, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
