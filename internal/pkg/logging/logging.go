// Package logging initializes the process-wide logger and provides small helpers.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

const verboseEnv = "GRIDCUBE_VERBOSE"

var root logr.Logger

// Log returns the root logger.
func Log() logr.Logger { return root }

func init() {
	root = stdr.New(log.New(os.Stderr, "gridcube ", log.Ltime))
	if n, err := strconv.Atoi(os.Getenv(verboseEnv)); err == nil {
		stdr.SetVerbosity(n)
	}
}

// Init sets verbosity for the root logger. A zero value leaves the env-derived verbosity alone.
func Init(verbosity int) {
	if verbosity != 0 {
		stdr.SetVerbosity(verbosity)
	}
}

type logJSON struct{ v any }

func (l logJSON) MarshalLog() any { return JSONString(l.v) }

// JSON wraps a value so it is rendered as a JSON string when logged.
func JSON(v any) logr.Marshaler { return logJSON{v: v} }

// JSONString marshals v, falling back to the error message on failure.
func JSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", err.Error())
	}
	return string(b)
}
