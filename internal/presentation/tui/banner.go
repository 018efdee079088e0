package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the hybridqa banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{` _           _          _     _             `, "#818cf8"},
		{`| |__  _   _| |__  _ __(_) __| | __ _  __ _ `, "#a78bfa"},
		{`| '_ \| | | | '_ \| '__| |/ _' |/ _' |/ _' |`, "#c084fc"},
		{`| | | | |_| | |_) | |  | | (_| | (_| | (_| |`, "#e879f9"},
		{`|_| |_|\__, |_.__/|_|  |_|\__,_|\__, |\__,_|`, "#f472b6"},
		{`       |___/                       |_|      `, "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
