package cmd

import (
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printSuccess(w io.Writer, format string, a ...any) {
	successColor.Fprintf(w, format+"\n", a...)
}

func printWarning(w io.Writer, format string, a ...any) {
	warningColor.Fprint(w, "warning: ")
	warningColor.Fprintf(w, format+"\n", a...)
}

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "error: ")
	errorColor.Fprintln(w, err)
}
