package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"studentportal.org/internal/mutate"
)

var (
	readPassword = term.ReadPassword // mockable
	isTerminal   = term.IsTerminal
)

// readLine reads one line from in, without the line break.
func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// password prompts without echo when stdin is a terminal and reads a line otherwise.
func password(cmd *cobra.Command, fromStdin bool) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && !fromStdin && isTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(cmd.InOrStdin())
}

// promptConfirmer asks on stderr and accepts y or yes from stdin.
func promptConfirmer(cmd *cobra.Command) mutate.Confirmer {
	return mutate.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", prompt)
		answer, err := readLine(cmd.InOrStdin())
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}
