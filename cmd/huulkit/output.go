package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/huulkit/huulkit/keystore"
	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/weather"
)

// printer formats command results. With pretty off it prints bare values,
// suitable for piping.
type printer struct {
	w      io.Writer
	pretty bool
}

func (p printer) refined(text string) {
	if p.pretty {
		fmt.Fprintln(p.w, color.CyanString("Refined"))
		fmt.Fprintln(p.w, strings.Repeat("─", 40))
	}
	fmt.Fprintln(p.w, text)
}

func (p printer) translation(dst refine.Language, text string) {
	if p.pretty {
		fmt.Fprintf(p.w, "%s %s\n", color.CyanString("%-10s", dst), text)
		return
	}
	fmt.Fprintln(p.w, text)
}

func (p printer) translations(results map[refine.Language]string) {
	for _, lang := range refine.Languages {
		text, ok := results[lang]
		if !ok {
			continue
		}
		if p.pretty {
			fmt.Fprintf(p.w, "%s %s\n", color.CyanString("%-10s", lang), text)
		} else {
			fmt.Fprintf(p.w, "%s\t%s\n", lang.Code(), text)
		}
	}
}

func (p printer) weather(infos []weather.Info) {
	if p.pretty {
		fmt.Fprintln(p.w, color.CyanString("Weather"))
		fmt.Fprintln(p.w, strings.Repeat("─", 40))
	}
	for _, info := range infos {
		if p.pretty {
			fmt.Fprintf(p.w, "%-10s %s %s\n", info.City, color.YellowString("%5s", info.Temperature),
				color.HiBlackString(info.LocalTime))
		} else {
			fmt.Fprintf(p.w, "%s\t%s\t%s\t%s\n", info.City, info.Temperature, info.LocalTime, info.IconURL)
		}
	}
}

func (p printer) keys(k keystore.Keys, path string) {
	row := func(name, value string) {
		status := color.GreenString("✓")
		if value == "" {
			status = color.RedString("✗")
			value = color.HiBlackString("not set")
		} else {
			value = keystore.Mask(value)
		}
		fmt.Fprintf(p.w, "%s %-8s %s\n", status, name, value)
	}
	if p.pretty {
		fmt.Fprintln(p.w, color.CyanString("API keys")+" "+color.HiBlackString(path))
	}
	row("Gemini", k.GeminiAPIKey)
	row("Weather", k.WeatherAPIKey)
}
