package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the moderation operation itself failed
	ExitCommandError = 2 // bad configuration or unreachable store
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Invalid input is a usage problem; other errors map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if apperr.Is(err, apperr.ErrInvalidInput) {
		return ExitCommandError
	}
	return ExitFailure
}

type formatter struct {
	format string
	w      io.Writer
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *formatter {
	return &formatter{format: opts.Format, w: cmd.OutOrStdout()}
}

func (f *formatter) json(v interface{}) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *formatter) moderation(r *models.ModerationResult) error {
	if f.format == "json" {
		return f.json(r)
	}
	if !r.Changed {
		fmt.Fprintf(f.w, "comment %s already %s, nothing to do\n", r.Comment.ID, r.To)
		return nil
	}
	if r.To == "" {
		fmt.Fprintf(f.w, "comment %s deleted (comment_count %+d)\n", r.Comment.ID, r.Delta)
		return nil
	}
	fmt.Fprintf(f.w, "comment %s: %s -> %s (comment_count %+d)\n", r.Comment.ID, r.From, r.To, r.Delta)
	return nil
}

func (f *formatter) recount(r *models.RecountResult) error {
	if f.format == "json" {
		return f.json(r)
	}
	if r.Previous == r.Current {
		fmt.Fprintf(f.w, "article %s: comment_count %d is consistent\n", r.ArticleID, r.Current)
		return nil
	}
	fmt.Fprintf(f.w, "article %s: comment_count repaired %d -> %d\n", r.ArticleID, r.Previous, r.Current)
	return nil
}
