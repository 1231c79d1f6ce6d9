package main

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/kingrea/offline-coder/internal/config"
)

// overrideFlag collects repeatable --set section.key=value pairs addressed
// at config.yaml. Unknown sections are rejected while parsing flags so a typo
// fails before the project directory is touched.
type overrideFlag map[string]string

func (o *overrideFlag) String() string {
	if o == nil || len(*o) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*o))
	for key, value := range *o {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (o *overrideFlag) Set(value string) error {
	key, raw, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected section.key=value, got %q", value)
	}
	key = strings.ToLower(strings.TrimSpace(key))
	section, field, dotted := strings.Cut(key, ".")
	if !dotted || field == "" {
		return fmt.Errorf("override %q needs a section.key path", key)
	}
	if !slices.Contains(config.Sections, section) {
		return fmt.Errorf("unknown config section %q (want one of %s)", section, strings.Join(config.Sections, ", "))
	}
	if *o == nil {
		*o = overrideFlag{}
	}
	(*o)[key] = raw
	return nil
}

// Type names the flag value in cobra usage output.
func (o *overrideFlag) Type() string {
	return "section.key=value"
}
