package experiment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sergev/libet/config"
)

// indexToTag converts an index (0-based) to a tag string (1-9, a-z)
func indexToTag(index int) string {
	if index < 9 {
		return fmt.Sprintf("%d", index+1)
	}
	return string(rune('a' + index - 9))
}

// tagToIndex converts a tag string (1-9, a-z) to an index (0-based)
func tagToIndex(tag string, maxIndex int) (int, error) {
	if len(tag) == 0 {
		return 0, nil
	}

	tag = strings.ToLower(tag)
	if len(tag) != 1 {
		return -1, fmt.Errorf("tag must be a single character")
	}

	c := tag[0]
	if c >= '1' && c <= '9' {
		index := int(c - '1')
		if index >= maxIndex {
			return -1, fmt.Errorf("tag %s is out of range", tag)
		}
		return index, nil
	}

	if c >= 'a' && c <= 'z' {
		index := 9 + int(c-'a')
		if index >= maxIndex {
			return -1, fmt.Errorf("tag %s is out of range", tag)
		}
		return index, nil
	}

	return -1, fmt.Errorf("invalid tag: %s (must be 1-9 or a-z)", tag)
}

// checkParticipant accepts identifiers made of digits only.
func checkParticipant(id string) error {
	if id == "" {
		return errors.New("participant ID is empty")
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return fmt.Errorf("participant ID %q must contain digits only", id)
		}
	}
	return nil
}

// askParticipant prompts until a valid identifier is entered.
func askParticipant(r *bufio.Reader, w io.Writer) (string, error) {
	for {
		fmt.Fprint(w, "Participant ID: ")
		line, err := r.ReadString('\n')
		id := strings.TrimSpace(line)
		if id != "" {
			perr := checkParticipant(id)
			if perr == nil {
				return id, nil
			}
			fmt.Fprintln(w, perr)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read participant ID: %w", err)
		}
	}
}

// selectProfile shows the profile menu. Empty input picks the default.
func selectProfile(c *config.Config, r *bufio.Reader, w io.Writer) (*config.Profile, error) {
	names := c.ProfileNames()
	defaultIndex := 0
	fmt.Fprintf(w, "Available experiments:\n")
	for i, name := range names {
		tag := indexToTag(i)
		if name == c.Default {
			defaultIndex = i
		}
		fmt.Fprintf(w, "  %s. %s\n", tag, name)
	}
	fmt.Fprintf(w, "\nSelect experiment (default %s): ", indexToTag(defaultIndex))

	selection, err := r.ReadString('\n')
	if err != nil && selection == "" {
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}
	selection = strings.TrimSpace(selection)

	selectedIndex := defaultIndex
	if selection != "" {
		selectedIndex, err = tagToIndex(selection, len(names))
		if err != nil {
			return nil, fmt.Errorf("invalid selection: %w", err)
		}
	}
	fmt.Fprintf(w, "\nSelected: %s\n", names[selectedIndex])
	return c.GetProfile(names[selectedIndex])
}
