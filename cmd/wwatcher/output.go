package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/polyinsider/wwatcher/internal/config"
	"github.com/polyinsider/wwatcher/internal/research"
)

// errEmptyQuery is returned when search or perplexity get no query text.
var errEmptyQuery = errors.New("query required")

// cliError attaches a help line to an error.
type cliError struct {
	err  error
	help string
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// reportedError marks a failure whose JSON has already been written to
// stdout; only the exit code is left to set.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

type errorOutput struct {
	Error string `json:"error"`
	Help  string `json:"help,omitempty"`
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeError prints err as {"error": ..., "help": ...}.
func writeError(w io.Writer, err error) {
	_ = writeJSON(w, errorOutput{Error: err.Error(), Help: helpFor(err)})
}

func helpFor(err error) string {
	var ce *cliError
	if errors.As(err, &ce) && ce.help != "" {
		return ce.help
	}

	var missing *config.MissingCredentialsError
	switch {
	case errors.As(err, &missing):
		if len(missing.Keys) > 1 {
			return "Full research requires both RAPIDAPI_KEY and PERPLEXITY_API_KEY in .env"
		}
		if missing.Keys[0] == config.EnvPerplexityKey {
			return "Set PERPLEXITY_API_KEY in .env. Get your key at https://perplexity.ai/settings/api"
		}
		return "Set " + missing.Keys[0] + " in .env"
	case errors.Is(err, research.ErrEmptyMarketTitle):
		return "Pass the market title as arguments"
	case errors.Is(err, errEmptyQuery):
		return "Pass the query as arguments"
	}
	return "Run 'wwatcher --help' for usage"
}
