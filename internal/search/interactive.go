package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mycok/cranfield/internal/textindex/index"
)

const pagePrompt = "(q)uit or enter number to jump to a page."

type command uint8

const (
	cmdQuit command = iota
	cmdNext
	cmdPrev
	cmdJump
	cmdInvalid
)

// parseCommand interprets a line typed at the paging prompt. Only the
// first character of n, p and q commands is significant.
func parseCommand(line string) (command, int) {
	line = strings.TrimSpace(line)
	if line == "" {
		return cmdQuit, 0
	}

	switch line[0] {
	case 'q':
		return cmdQuit, 0
	case 'n':
		return cmdNext, 0
	case 'p':
		return cmdPrev, 0
	}

	page, err := strconv.Atoi(line)
	if err != nil {
		return cmdInvalid, 0
	}

	return cmdJump, page
}

// RunInteractive prompts for queries on the session input until an empty
// line or the end of input, showing a paged result list for each one. If
// the session has a fixed query it is run once and only its first page is
// shown.
func (s *Session) RunInteractive(ctx context.Context) error {
	single := s.cfg.Query != ""

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := s.cfg.Query
		if !single {
			fmt.Fprintln(s.cfg.Out, "Enter query: ")

			var ok bool
			if line, ok = s.readLine(); !ok {
				break
			}
		}

		q, err := s.parse(line)
		if errors.Is(err, index.ErrEmptyQuery) {
			break
		} else if err != nil {
			return err
		}

		fmt.Fprintf(s.cfg.Out, "Searching for: %s\n", q)
		s.countQuery("interactive")

		if err = s.benchmark(q); err != nil {
			return err
		}

		if err = s.page(q, !single); err != nil {
			return err
		}

		if single {
			break
		}
	}

	if err := s.lines.Err(); err != nil {
		return fmt.Errorf("read queries: %w", err)
	}

	return nil
}

// page shows the results of q a page at a time. Enough hits for the first
// few pages are fetched up front; the full list is fetched once the user
// pages past them. Without prompting only the first page is shown.
func (s *Session) page(q index.Query, prompt bool) error {
	hits, err := s.search(q, prefetchPages*s.cfg.PageSize)
	if err != nil {
		return err
	}

	total := int(hits.Total)
	fmt.Fprintf(s.cfg.Out, "%d total matching documents\n", total)

	p := newPager(s.cfg.PageSize, total)
	for {
		start, end := p.window()
		if end > len(hits.Items) && len(hits.Items) < total {
			s.cfg.Logger.WithFields(logrus.Fields{
				"collected": len(hits.Items),
				"total":     total,
			}).Debug("collecting remaining hits")

			if hits, err = s.search(q, 0); err != nil {
				return err
			}
		}

		// The index may hold fewer hits than first reported.
		if end > len(hits.Items) {
			end = len(hits.Items)
		}
		s.render(hits.Items, start, end)

		if !prompt || end == 0 {
			return nil
		}

		if quit := s.await(p); quit {
			return nil
		}
	}
}

// await reads paging commands until one changes the page or ends paging.
func (s *Session) await(p *pager) bool {
	for {
		s.prompt(p)

		line, ok := s.readLine()
		if !ok {
			return true
		}

		cmd, page := parseCommand(line)
		switch cmd {
		case cmdQuit:
			return true
		case cmdNext:
			if p.next() {
				return false
			}
			fmt.Fprintln(s.cfg.Out, "No more pages.")
		case cmdPrev:
			if p.prev() {
				return false
			}
			fmt.Fprintln(s.cfg.Out, "Already at the first page.")
		case cmdJump:
			if p.jump(page) {
				return false
			}
			fmt.Fprintln(s.cfg.Out, "No such page")
		default:
			fmt.Fprintln(s.cfg.Out, "No such page")
		}
	}
}

func (s *Session) prompt(p *pager) {
	var b strings.Builder

	b.WriteString("Press ")
	if p.hasPrev() {
		b.WriteString("(p)revious page, ")
	}
	if p.hasNext() {
		b.WriteString("(n)ext page, ")
	}
	b.WriteString(pagePrompt)

	fmt.Fprintln(s.cfg.Out, b.String())
}

func (s *Session) render(items []index.Hit, start, end int) {
	for i := start; i < end; i++ {
		hit := items[i]
		if s.cfg.Raw {
			fmt.Fprintf(s.cfg.Out, "doc=%d score=%s\n", hit.InstanceID, formatScore(hit.Score))

			continue
		}

		fmt.Fprintf(s.cfg.Out, "%d. %d\n", i+1, hit.InstanceID)
		if hit.Title != "" {
			fmt.Fprintf(s.cfg.Out, "   Title: %s\n", hit.Title)
		}
	}
}
