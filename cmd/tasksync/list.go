package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tasksync/board"
	"tasksync/domain"
	"tasksync/mirror"
	"tasksync/view"
)

var listOpts struct {
	user     string
	priority string
	query    string
	date     string
	sort     string
	sections bool
	timeout  time.Duration
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print a user's derived task list",
	Long: `Subscribe to a user's tasks, wait for the first snapshot and print the
list after applying the given filters and sort order.`,
	RunE: listTasks,
}

func init() {
	f := listCmd.Flags()
	f.StringVarP(&listOpts.user, "user", "u", "", "user id whose tasks to list")
	f.StringVarP(&listOpts.priority, "priority", "p", "", "only tasks with this priority (P1, high, ...)")
	f.StringVarP(&listOpts.query, "query", "q", "", "case-insensitive text filter")
	f.StringVar(&listOpts.date, "date", "", "only tasks due on this day (YYYY-MM-DD)")
	f.StringVarP(&listOpts.sort, "sort", "s", string(domain.DefaultSortOrder), "sort order")
	f.BoolVar(&listOpts.sections, "sections", false, "group by today, future, past and no date")
	f.DurationVar(&listOpts.timeout, "timeout", 10*time.Second, "how long to wait for the first snapshot")
	_ = listCmd.MarkFlagRequired("user")
}

func listTasks(cmd *cobra.Command, args []string) error {
	crit, err := listCriteria(cfg.Location())
	if err != nil {
		return err
	}
	logger := log.StandardLogger()
	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), listOpts.timeout)
	defer cancel()

	b := be.newBoard(cfg, logger)()
	defer b.Close()
	b.SetCriteria(crit)
	if err := b.SetUser(ctx, listOpts.user); err != nil {
		return err
	}
	defer b.Logout()
	if err := waitReady(ctx, b); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listOpts.sections {
		return printSections(out, b.Sections(time.Now().In(cfg.Location())))
	}
	return printTasks(out, b.Tasks())
}

func listCriteria(loc *time.Location) (view.Criteria, error) {
	var c view.Criteria
	if listOpts.priority != "" {
		p, err := domain.ParsePriority(listOpts.priority)
		if err != nil {
			return c, err
		}
		c.Priority = &p
	}
	c.Query = listOpts.query
	if listOpts.date != "" {
		d, err := time.ParseInLocation("2006-01-02", listOpts.date, loc)
		if err != nil {
			return c, fmt.Errorf("invalid date %q", listOpts.date)
		}
		c.Date = &d
	}
	order, err := domain.ParseSortOrder(listOpts.sort)
	if err != nil {
		return c, err
	}
	c.Order = order
	return c, nil
}

// waitReady blocks until the first snapshot arrives or the subscription fails.
func waitReady(ctx context.Context, b *board.Board) error {
	for st := range b.State().Watch(ctx) {
		switch st {
		case mirror.Live:
			return nil
		case mirror.Failed:
			if err := b.Err(); err != nil {
				return err
			}
			return errors.New("subscription failed")
		}
	}
	return fmt.Errorf("waiting for tasks: %w", ctx.Err())
}

func printTasks(w io.Writer, tasks []domain.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range tasks {
		mark := " "
		if t.IsDone {
			mark = "x"
		}
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\t%s\n", mark, t.Priority.Code(), due, t.Title, t.ID)
	}
	return tw.Flush()
}

func printSections(w io.Writer, s view.Sections) error {
	groups := []struct {
		name  string
		tasks []domain.Task
	}{
		{"Today", s.Today},
		{"Upcoming", s.Future},
		{"Past", s.Past},
		{"No date", s.NoDate},
	}
	for _, g := range groups {
		if len(g.tasks) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s (%d)\n", g.name, len(g.tasks)); err != nil {
			return err
		}
		if err := printTasks(w, g.tasks); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}
