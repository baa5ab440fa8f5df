package main

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"
	"strings"

	secondbrain "github.com/DhruvTemura/second-brain-ai"
	"github.com/DhruvTemura/second-brain-ai/config"
	"github.com/urfave/cli/v2"
)

var sampleNotes = []string{
	"Dentist appointment moved to the second Thursday of next month.",
	"The Wi-Fi password for the cabin is written on the fridge magnet.",
	"Sprint retro: we agreed to cut the release checklist in half.",
	"Mum's birthday dinner is booked at the Greek place on Elm Street.",
	"Started reading a book about the history of cartography.",
	"Q3 roadmap: migrate billing, ship the mobile onboarding, hire two engineers.",
	"The plumber said the boiler pressure should sit between 1 and 1.5 bar.",
	"Idea: a weekend project that turns receipts into a spending dashboard.",
	"Passport renewal needs two photos and the old passport.",
	"Ran 5k in 27 minutes, new personal best.",
	"Garden: plant tomatoes after the last frost, basil next to them.",
	"Meeting with Priya: she owns the data retention policy draft.",
}

// linesFromFile returns an iterator over the lines of a file.
func linesFromFile(filename string) (iter.Seq[string], func() error, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}

	scanner := bufio.NewScanner(f)
	seq := func(yield func(string) bool) {
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}
	done := func() error {
		defer f.Close()
		return scanner.Err()
	}
	return seq, done, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// submitGrouped submits every group of size non-empty lines as one text note.
func submitGrouped(ctx context.Context, b *secondbrain.Brain, userID, title string, lines iter.Seq[string], size int) (int, error) {
	group := make([]string, 0, size)
	submitted := 0

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		_, err := b.SubmitText(ctx, userID, secondbrain.TextNote{Text: strings.Join(group, "\n"), Title: title})
		if err != nil {
			return err
		}
		submitted++
		group = group[:0]
		return nil
	}

	for line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		group = append(group, line)
		if len(group) == size {
			if err := flush(); err != nil {
				return submitted, err
			}
		}
	}
	return submitted, flush()
}

func seedCommand(c *cli.Context) error {
	size := c.Int("lines-per-note")
	if size <= 0 {
		return fmt.Errorf("lines-per-note must be positive, got %d", size)
	}

	lines := linesFromSlice(sampleNotes)
	finish := func() error { return nil }
	if src := c.String("src"); src != "" {
		var err error
		lines, finish, err = linesFromFile(src)
		if err != nil {
			return err
		}
	}

	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		n, err := submitGrouped(c.Context, b, userOf(c, cfg), c.String("title"), lines, size)
		if finishErr := finish(); err == nil {
			err = finishErr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Queued %d notes\n", n)
		return nil
	})
}
