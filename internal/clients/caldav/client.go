// Package caldav keeps each occasion as one calendar object in a CalDAV
// collection, named <occasion id>.ics.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/export"
)

type Client struct {
	endpoint   string
	username   string
	password   string
	collection string // default collection for publish and delete
	dav        *caldav.Client
}

func NewClient(endpoint, username, password string) *Client {
	return &Client{
		endpoint: endpoint,
		username: username,
		password: password,
	}
}

// IsConfigured reports whether the server and credentials are known.
func (c *Client) IsConfigured() bool {
	return c.endpoint != "" && c.username != "" && c.password != ""
}

// SetCalendarID selects the collection used when a call passes an empty path.
func (c *Client) SetCalendarID(path string) {
	c.collection = path
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.dav != nil {
		return c.dav, nil
	}
	if !c.IsConfigured() {
		return nil, fmt.Errorf("caldav: endpoint or credentials missing")
	}

	hc := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: 30 * time.Second}, c.username, c.password)
	dav, err := caldav.NewClient(hc, c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("caldav: open %s: %w", c.endpoint, err)
	}
	c.dav = dav
	return dav, nil
}

// DiscoverCalendars lists the collections that accept VEVENT objects, the
// ones an occasion can be published to.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	dav, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("caldav: principal: %w", err)
	}
	home, err := dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("caldav: calendar home: %w", err)
	}
	collections, err := dav.FindCalendars(ctx, home)
	if err != nil {
		return nil, fmt.Errorf("caldav: calendars in %s: %w", home, err)
	}

	result := make([]Calendar, 0, len(collections))
	for _, col := range collections {
		if !acceptsEvents(col) {
			continue
		}
		result = append(result, Calendar{ID: col.Path, DisplayName: col.Name, URL: col.Path})
	}
	return result, nil
}

// acceptsEvents treats a collection without a component restriction as
// accepting everything.
func acceptsEvents(col caldav.Calendar) bool {
	if len(col.SupportedComponentSet) == 0 {
		return true
	}
	for _, comp := range col.SupportedComponentSet {
		if strings.EqualFold(comp, ical.CompEvent) {
			return true
		}
	}
	return false
}

// PublishOccasion writes the occasion as one calendar object named after its
// id, replacing any previous version. It reports false when the occasion has
// nothing to publish.
func (c *Client) PublishOccasion(ctx context.Context, calendarPath string, o *domain.Occasion, opts export.Options) (bool, error) {
	ev := export.Event(o, opts)
	if ev == nil {
		return false, nil
	}

	dav, err := c.connect()
	if err != nil {
		return false, err
	}
	path, err := c.objectPath(calendarPath, o.ID)
	if err != nil {
		return false, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, export.ProductID)
	cal.Children = append(cal.Children, ev.Component)

	if _, err := dav.PutCalendarObject(ctx, path, cal); err != nil {
		return false, fmt.Errorf("publish occasion %s: %w", o.ID, err)
	}
	return true, nil
}

// DeleteOccasion removes a published occasion.
func (c *Client) DeleteOccasion(ctx context.Context, calendarPath, occasionID string) error {
	dav, err := c.connect()
	if err != nil {
		return err
	}
	path, err := c.objectPath(calendarPath, occasionID)
	if err != nil {
		return err
	}

	if err := dav.RemoveAll(ctx, path); err != nil {
		return fmt.Errorf("delete occasion %s: %w", occasionID, err)
	}
	return nil
}

func (c *Client) objectPath(calendarPath, occasionID string) (string, error) {
	if calendarPath == "" {
		calendarPath = c.collection
	}
	if calendarPath == "" {
		return "", fmt.Errorf("caldav: no calendar collection selected")
	}
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + occasionID + ".ics", nil
}
