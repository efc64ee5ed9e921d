package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/model"
)

const maxOccurrencesPerEvent = 5000

// ICSSource reads an iCalendar feed from a local file or an http(s) URL.
type ICSSource struct {
	location string
	client   *http.Client
	logger   *zap.Logger
}

func NewICSSource(location string, logger *zap.Logger) *ICSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICSSource{
		location: location,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.Named("ics"),
	}
}

func (s *ICSSource) Fetch(ctx context.Context, start, end time.Time) ([]model.RawEvent, error) {
	body, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	events, err := ParseICS(body, start, end)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("parsed feed", zap.String("source", redactURL(s.location)), zap.Int("count", len(events)))
	return events, nil
}

func (s *ICSSource) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		body, err := os.ReadFile(s.location)
		if err != nil {
			return nil, fmt.Errorf("read ics file: %w", err)
		}
		return body, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(s.location), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", redactURL(s.location), resp.Status)
	}
	return io.ReadAll(resp.Body)
}

type vevent struct {
	uid        string
	summary    string
	start      time.Time
	end        time.Time
	allDay     bool
	rrule      string
	exdates    []time.Time
	recurrence *time.Time
}

// ParseICS returns the timed events of an iCalendar payload that intersect
// [start, end). Recurring events are expanded and each instance gets the id
// "UID@<instance start, RFC3339 UTC>".
func ParseICS(body []byte, start, end time.Time) ([]model.RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	bases := make([]vevent, 0)
	overrides := make(map[string][]vevent)
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp)
		if err != nil {
			continue
		}
		if ev.allDay {
			continue
		}
		if ev.recurrence != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]model.RawEvent, 0)
	for _, ev := range bases {
		if ev.rrule == "" {
			raw := model.RawEvent{SourceID: ev.uid, Title: titleOrDefault(ev.summary), Start: ev.start, End: ev.end}
			if intersects(raw, start, end) {
				out = append(out, raw)
			}
			continue
		}
		instances, err := expand(ev, overrides[ev.uid], start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, instances...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.uid = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.allDay = true
		return out, nil
	}
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.allDay = true
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.start = start
	out.end = start
	if end, err := ve.GetEndAt(); err == nil {
		out.end = end
	}
	if out.end.Before(out.start) {
		return out, fmt.Errorf("event %s ends before it starts", out.uid)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), tzidOf(p), start.Location()); err == nil {
				out.exdates = append(out.exdates, t)
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, tzidOf(p), start.Location()); err == nil {
			out.recurrence = &t
		}
	}
	return out, nil
}

func expand(ev vevent, overrides []vevent, start, end time.Time) ([]model.RawEvent, error) {
	rule, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		return nil, fmt.Errorf("ics: event %s rrule %q: %w", ev.uid, ev.rrule, err)
	}
	rule.DTStart(ev.start)

	set := rrule.Set{}
	set.RRule(rule)
	for _, ex := range ev.exdates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	dur := ev.end.Sub(ev.start)
	// Instances starting up to one duration before the window can still
	// reach into it.
	starts := set.Between(start.Add(-dur).In(ev.start.Location()), end.In(ev.start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]model.RawEvent, 0, len(starts))
	for _, occ := range starts {
		raw := model.RawEvent{
			SourceID: instanceID(ev.uid, occ),
			Title:    titleOrDefault(ev.summary),
			Start:    occ,
			End:      occ.Add(dur),
		}
		for _, ov := range overrides {
			if ov.recurrence.Equal(occ) {
				raw.Title = titleOrDefault(ov.summary)
				raw.Start = ov.start
				raw.End = ov.end
				break
			}
		}
		if intersects(raw, start, end) {
			out = append(out, raw)
		}
	}
	return out, nil
}

func instanceID(uid string, start time.Time) string {
	return uid + "@" + start.UTC().Format(time.RFC3339)
}

func intersects(ev model.RawEvent, from, to time.Time) bool {
	return model.CalendarEvent{Start: ev.Start, End: ev.End}.Overlaps(from, to)
}

func tzidOf(p *ical.IANAProperty) string {
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		return tz[0]
	}
	return ""
}

func parseICSTime(v, tzid string, fallback *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	loc := fallback
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

func redactURL(v string) string {
	if i := strings.Index(v, "?"); i >= 0 {
		return v[:i] + "?…"
	}
	return v
}
