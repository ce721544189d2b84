// Tracestrip reformats the JSON log lines written by errors.Trace.Log() into a form that is easier
// to read in a terminal:
//
//	[ERROR][18:23:06][.../config.go:110]: open config.json: no such file or directory
//	   0:           0x4a2f1c - main.loadConfig
//	                        at /src/config.go:110
//	   1: ...
//
// It reads from standard input and writes to standard output. Lines that are not valid JSON or do not
// have the time, level and msg keys are passed through unchanged. The origin is taken from the
// ErrSrc and ErrLine keys of a Trace, or from the file and line keys of any other slog line.
//
//	go run ./cmd/tracedemo 2>&1 | go run ./telemetry/log/utils/tracestrip
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
)

func main() {
	scan(os.Stdin, os.Stdout)
}

var lineReturn = []byte{'\n'}

// scan reads lines from in, reformats the log lines it understands and writes them to out.
func scan(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	// Stack traces make the lines of a Trace much longer than the 64KiB default.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if _, err := io.WriteString(out, reframe(scanner.Bytes())); err != nil {
			return
		}
		_, _ = out.Write(lineReturn) // Ignore this error.
	}
}

var reqKeys = []string{
	"time",
	"level",
	"msg",
}

// record is a decoded log line.
type record map[string]any

func (r record) valid() bool {
	for _, k := range reqKeys {
		if _, ok := r[k]; !ok {
			return false
		}
	}
	_, file := r.origin()
	return file != ""
}

// origin returns the line and file the log line is about. A Trace's origin wins over the location
// of the log call.
func (r record) origin() (int, string) {
	if file, ok := r["ErrSrc"].(string); ok && file != "" {
		return number(r["ErrLine"]), file
	}
	if file, ok := r["file"].(string); ok {
		return number(r["line"]), file
	}
	if source, ok := r["source"].(map[string]any); ok {
		if file, ok := source["file"].(string); ok {
			return number(source["line"]), file
		}
	}
	return 0, ""
}

func number(v any) int {
	switch v := v.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (r record) level() string {
	v, ok := r["level"].(string)
	if !ok {
		return "UnknownLevel"
	}
	return strings.ToUpper(v)
}

func (r record) shortFile() string {
	_, v := r.origin()
	parts := strings.Split(v, "/")
	return parts[len(parts)-1]
}

func (r record) hourMinuteSecond() string {
	v, ok := r["time"].(string)
	if !ok {
		return "00:00:00"
	}
	tm, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return "00:00:00"
	}
	return tm.Format(`15:04:05`)
}

func (r record) msg() string {
	s, ok := r["msg"].(string)
	if !ok {
		return "no message"
	}
	return s
}

// stackTrace returns the formatted backtrace of a Trace without the trailing newline.
func (r record) stackTrace() string {
	s, _ := r["StackTrace"].(string)
	return strings.TrimRight(s, "\n")
}

// reframe looks for a JSON log line that it understands and reformats it to a shorter form. The
// backtrace of a Trace follows on its own lines.
func reframe(line []byte) string {
	r := record{}
	if err := json.Unmarshal(line, &r); err != nil {
		return string(line)
	}
	if !r.valid() {
		return string(line)
	}

	l, _ := r.origin()
	s := fmt.Sprintf("[%s][%s][.../%s:%d]: %s", r.level(), r.hourMinuteSecond(), r.shortFile(), l, r.msg())
	if st := r.stackTrace(); st != "" {
		s += "\n" + st
	}
	return s
}
