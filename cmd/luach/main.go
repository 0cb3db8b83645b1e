package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/tazhate/luach/config"
	"github.com/tazhate/luach/internal/app"
	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/export"
	"github.com/tazhate/luach/internal/service"
	"github.com/tazhate/luach/pkg/logger"
)

// withApp loads the configuration, builds the application and hands it to fn.
func withApp(fn func(ctx context.Context, cmd *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.Load(cmd.String("config"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log := logger.New(cfg.LogLevel, cfg.LogFormat)

		a, err := app.New(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, cmd, a)
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id", Required: true}
}

func userArg(cmd *cli.Command) (int64, error) {
	id, err := strconv.ParseInt(cmd.String("user"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--user must be a numeric id")
	}
	return id, nil
}

func serve(ctx context.Context, _ *cli.Command, a *app.App) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.Log.Info("luach started")
	return a.Serve(ctx)
}

func runOnce(ctx context.Context, cmd *cli.Command, a *app.App) error {
	res := a.Scheduler.RunOnce(ctx)
	fmt.Printf("users=%d processed=%d enqueued=%d skipped=%d already_done=%d failed=%d\n",
		res.Users, res.Processed, res.Enqueued, res.Skipped, res.AlreadyDone, res.Failed)

	if cmd.Bool("dispatch") {
		st, err := a.Dispatcher.Dispatch(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("sent=%d failed=%d deferred=%d\n", st.Sent, st.Failed, st.Deferred)
	}
	return res.Err
}

func today(ctx context.Context, cmd *cli.Command, a *app.App) error {
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	settings, err := a.Storage.GetReminderSettings(ctx, uid)
	if err != nil {
		return err
	}
	occasions, err := a.Occasions.List(ctx, uid)
	if err != nil {
		return err
	}

	banner := a.Banner()
	if cmd.Bool("dismiss") {
		return banner.Dismiss(ctx)
	}

	rep, err := a.TerminalReminder(os.Stdout).Check(ctx, occasions, settings)
	if err != nil {
		return err
	}
	fmt.Printf("Today is %s (%s)\n", rep.Due.Today, rep.Due.Today.Gregorian().Format("Mon 2006-01-02"))

	visible, err := banner.Visible(ctx, rep)
	if err != nil {
		return err
	}
	if visible {
		fmt.Println()
		for _, m := range rep.Due.TodayMatches {
			fmt.Printf("Today: %s\n", m.Label())
		}
		for _, m := range rep.Due.TomorrowMatches {
			fmt.Printf("Tomorrow: %s\n", m.Label())
		}
	}
	return nil
}

func exportICS(ctx context.Context, cmd *cli.Command, a *app.App) error {
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	occasions, err := a.Occasions.List(ctx, uid)
	if err != nil {
		return err
	}

	now := time.Now()
	cal := export.Calendar(occasions, export.Options{From: calendar.FromTime(now), Years: a.Config.ExportYears, Stamp: now})

	out := os.Stdout
	if path := cmd.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return export.Write(out, cal)
}

func publish(ctx context.Context, cmd *cli.Command, a *app.App) error {
	if a.CalDAV == nil {
		return fmt.Errorf("CalDAV is not configured")
	}
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	occasions, err := a.Occasions.List(ctx, uid)
	if err != nil {
		return err
	}

	now := time.Now()
	opts := export.Options{From: calendar.FromTime(now), Years: a.Config.ExportYears, Stamp: now}
	published := 0
	for _, o := range occasions {
		ok, err := a.CalDAV.PublishOccasion(ctx, cmd.String("calendar"), o, opts)
		if err != nil {
			a.Log.WithError(err).WithField("occasion_id", o.ID).Error("publish failed")
			continue
		}
		if ok {
			published++
		}
	}
	fmt.Printf("published %d of %d occasions\n", published, len(occasions))
	return nil
}

func calendars(ctx context.Context, _ *cli.Command, a *app.App) error {
	if a.CalDAV == nil {
		return fmt.Errorf("CalDAV is not configured")
	}
	cals, err := a.CalDAV.DiscoverCalendars(ctx)
	if err != nil {
		return err
	}
	for _, c := range cals {
		fmt.Printf("%s\t%s\n", c.ID, c.DisplayName)
	}
	return nil
}

func userAdd(ctx context.Context, cmd *cli.Command, a *app.App) error {
	name := strings.TrimSpace(cmd.Args().First())
	if name == "" {
		return fmt.Errorf("usage: luach user add NAME")
	}
	u := &domain.User{Name: name}
	if err := a.Storage.CreateUser(ctx, u); err != nil {
		return err
	}
	fmt.Printf("created user %d\n", u.ID)
	return nil
}

func userList(ctx context.Context, _ *cli.Command, a *app.App) error {
	users, err := a.Storage.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%d\t%s\n", u.ID, u.Name)
	}
	return nil
}

// parseHebrew reads "YEAR-MONTH-DAY", months numbered from Nisan = 1.
func parseHebrew(s string) (y, m, d int, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("hebrew date must be YEAR-MONTH-DAY")
	}
	nums := make([]int, 3)
	for i, p := range parts {
		if nums[i], err = strconv.Atoi(p); err != nil {
			return 0, 0, 0, fmt.Errorf("hebrew date must be YEAR-MONTH-DAY")
		}
	}
	return nums[0], nums[1], nums[2], nil
}

func occasionAdd(ctx context.Context, cmd *cli.Command, a *app.App) error {
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	kind, err := domain.ParseOccasionKind(cmd.String("kind"))
	if err != nil {
		return err
	}
	in := service.OccasionInput{
		Name:            cmd.String("name"),
		Notes:           cmd.String("notes"),
		Kind:            kind,
		RemindDayOf:     cmd.Bool("remind-day-of"),
		RemindDayBefore: cmd.Bool("remind-day-before"),
	}
	switch {
	case cmd.String("hebrew") != "":
		if in.HebrewYear, in.HebrewMonth, in.HebrewDay, err = parseHebrew(cmd.String("hebrew")); err != nil {
			return err
		}
	case cmd.String("date") != "":
		if in.Solar, err = time.Parse("2006-01-02", cmd.String("date")); err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD")
		}
	default:
		return fmt.Errorf("one of --hebrew or --date is required")
	}

	o, err := a.Occasions.Create(ctx, uid, in)
	if err != nil {
		return err
	}
	fmt.Printf("created %s: %s on %s\n", o.ID, o.Name, o.Anchor.Date())
	return nil
}

func occasionList(ctx context.Context, cmd *cli.Command, a *app.App) error {
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	occasions, err := a.Occasions.List(ctx, uid)
	if err != nil {
		return err
	}
	for _, o := range occasions {
		date := "?"
		if o.Anchor.Consistent() == nil {
			date = o.Anchor.Date().String()
		}
		fmt.Printf("%s\t%-16s\t%s\t%s\n", o.ID, o.Kind, date, o.Name)
	}
	return nil
}

func occasionDelete(ctx context.Context, cmd *cli.Command, a *app.App) error {
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: luach occasion delete --user ID OCCASION_ID")
	}
	if err := a.Occasions.Delete(ctx, uid, id); err != nil {
		return err
	}
	if a.CalDAV != nil {
		if err := a.CalDAV.DeleteOccasion(ctx, "", id); err != nil {
			a.Log.WithError(err).Warn("remove published occasion")
		}
	}
	return nil
}

func settingsSet(ctx context.Context, cmd *cli.Command, a *app.App) error {
	uid, err := userArg(cmd)
	if err != nil {
		return err
	}
	rs, err := a.Storage.GetReminderSettings(ctx, uid)
	if err != nil {
		return err
	}
	if rs == nil {
		rs = &domain.ReminderSettings{UserID: uid, DayBoundary: domain.BoundarySunset}
	}

	if cmd.IsSet("location") {
		loc, ok := domain.FindLocation(cmd.String("location"))
		if !ok {
			return fmt.Errorf("unknown location %q", cmd.String("location"))
		}
		rs.LocationName = loc.Name
	}
	if cmd.IsSet("boundary") {
		rs.DayBoundary = domain.ParseDayBoundary(cmd.String("boundary"))
	}
	if cmd.IsSet("recipient") {
		rs.Recipient = cmd.String("recipient")
	}
	if cmd.IsSet("enabled") {
		rs.RemindersEnabled = cmd.Bool("enabled")
	}
	if err := a.Storage.SaveReminderSettings(ctx, rs); err != nil {
		return err
	}
	a.Log.WithFields(logrus.Fields{
		"user_id":  uid,
		"location": rs.Location().Name,
		"boundary": rs.DayBoundary,
		"enabled":  rs.RemindersEnabled,
	}).Info("reminder settings saved")
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "luach",
		Usage: "Hebrew and secular occasion reminders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("LUACH_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "Run the API server, scheduler and bot", Action: withApp(serve)},
			{
				Name:   "run-once",
				Usage:  "Run a single reminder pass",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "dispatch", Usage: "also deliver queued messages"}},
				Action: withApp(runOnce),
			},
			{
				Name:  "today",
				Usage: "Show today's reminders and notify on this device",
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "dismiss", Usage: "hide the summary until tomorrow"},
				},
				Action: withApp(today),
			},
			{
				Name:   "export",
				Usage:  "Write occasions as iCalendar",
				Flags:  []cli.Flag{userFlag(), &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file"}},
				Action: withApp(exportICS),
			},
			{
				Name:   "publish",
				Usage:  "Publish occasions to the CalDAV calendar",
				Flags:  []cli.Flag{userFlag(), &cli.StringFlag{Name: "calendar", Usage: "calendar path"}},
				Action: withApp(publish),
			},
			{Name: "calendars", Usage: "List CalDAV calendars", Action: withApp(calendars)},
			{
				Name:  "user",
				Usage: "Manage users",
				Commands: []*cli.Command{
					{Name: "add", Usage: "Create a user", ArgsUsage: "NAME", Action: withApp(userAdd)},
					{Name: "list", Usage: "List users", Action: withApp(userList)},
				},
			},
			{
				Name:  "occasion",
				Usage: "Manage occasions",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Create an occasion",
						Flags: []cli.Flag{
							userFlag(),
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "kind", Value: string(domain.KindHebrewYearly),
								Usage: "one-time, hebrew-yearly, hebrew-monthly, secular-yearly or secular-monthly"},
							&cli.StringFlag{Name: "hebrew", Usage: "Hebrew date YEAR-MONTH-DAY (Nisan = 1)"},
							&cli.StringFlag{Name: "date", Usage: "Gregorian date YYYY-MM-DD"},
							&cli.StringFlag{Name: "notes"},
							&cli.BoolFlag{Name: "remind-day-of", Value: true},
							&cli.BoolFlag{Name: "remind-day-before"},
						},
						Action: withApp(occasionAdd),
					},
					{Name: "list", Usage: "List occasions", Flags: []cli.Flag{userFlag()}, Action: withApp(occasionList)},
					{Name: "delete", Usage: "Delete an occasion", ArgsUsage: "OCCASION_ID", Flags: []cli.Flag{userFlag()}, Action: withApp(occasionDelete)},
				},
			},
			{
				Name:  "settings",
				Usage: "Manage reminder settings",
				Commands: []*cli.Command{
					{
						Name:  "set",
						Usage: "Update reminder settings",
						Flags: []cli.Flag{
							userFlag(),
							&cli.StringFlag{Name: "location"},
							&cli.StringFlag{Name: "boundary", Usage: "sunset or midnight"},
							&cli.StringFlag{Name: "recipient", Usage: "email address or telegram:<chat id>"},
							&cli.BoolFlag{Name: "enabled"},
						},
						Action: withApp(settingsSet),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
