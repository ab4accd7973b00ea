package bitstream

import (
	"fmt"
	"strings"
	"sync"

	"github.com/modern-go/gls"

	elog "github.com/eluv-io/log-go"
)

// LogWrapper wraps a log-go logger and appends the source label associated
// with the calling goroutine, if any. Tools decoding several inputs in
// parallel associate each worker goroutine with the name of its input.
type LogWrapper struct {
	log *elog.Log
}

// NewLog returns a wrapper around the log-go logger with the given name.
func NewLog(name string) *LogWrapper {
	return &LogWrapper{log: elog.Get(name)}
}

func (l *LogWrapper) Trace(msg string, fields ...interface{}) {
	fields = append(fields, logSourceIfKnown()...)
	l.log.Trace(msg, fields...)
}

func (l *LogWrapper) Debug(msg string, fields ...interface{}) {
	fields = append(fields, logSourceIfKnown()...)
	l.log.Debug(msg, fields...)
}

func (l *LogWrapper) Info(msg string, fields ...interface{}) {
	fields = append(fields, logSourceIfKnown()...)
	l.log.Info(msg, fields...)
}

func (l *LogWrapper) Warn(msg string, fields ...interface{}) {
	dispatchToChannelIfPresent("WARN", msg, fields...)
	fields = append(fields, logSourceIfKnown()...)
	l.log.Warn(msg, fields...)
}

func (l *LogWrapper) Error(msg string, fields ...interface{}) {
	dispatchToChannelIfPresent("ERROR", msg, fields...)
	fields = append(fields, logSourceIfKnown()...)
	l.log.Error(msg, fields...)
}

var log = NewLog("/bitstream")

// gidSourceMap associates a goroutine ID with a source label
var gidSourceMap sync.Map = sync.Map{}

// sourceChanMap associates a source label with a channel capturing warn/error logs
var sourceChanMap = make(map[string]chan string)
var sourceChanMapMu sync.Mutex

// AssociateGIDWithSource associates the current goroutine with the given
// source label. Empty labels are ignored.
func AssociateGIDWithSource(source string) {
	if source == "" {
		return
	}
	gidSourceMap.Store(gls.GoID(), source)
}

// DissociateGIDFromSource removes the association of the current goroutine.
func DissociateGIDFromSource() {
	gidSourceMap.Delete(gls.GoID())
}

// GIDSource returns the source label of the current goroutine.
func GIDSource() (string, bool) {
	source, ok := gidSourceMap.Load(gls.GoID())
	if !ok {
		return "", false
	}
	return source.(string), true
}

// RegisterWarnErrChanForSource registers a channel receiving the warn and
// error logs emitted on goroutines associated with source. Ownership of the
// channel is taken over: it is closed by SourceEnded.
func RegisterWarnErrChanForSource(source string, ch chan string) {
	sourceChanMapMu.Lock()
	_, exists := sourceChanMap[source]
	sourceChanMap[source] = ch
	sourceChanMapMu.Unlock()
	if exists {
		log.Warn("RegisterWarnErrChanForSource: source already registered with channel", "source", source)
	}
}

// SourceEnded releases the channel registered for source, if any.
func SourceEnded(source string) {
	sourceChanMapMu.Lock()
	ch, ok := sourceChanMap[source]
	delete(sourceChanMap, source)
	sourceChanMapMu.Unlock()
	if ok {
		close(ch)
	}
}

func logSourceIfKnown() []interface{} {
	if source, ok := GIDSource(); ok {
		return []interface{}{"source", source}
	}
	return nil
}

func dispatchToChannelIfPresent(level string, msg string, fields ...interface{}) {
	source, ok := GIDSource()
	if !ok {
		return
	}
	sourceChanMapMu.Lock()
	defer sourceChanMapMu.Unlock()
	ch, ok := sourceChanMap[source]
	if !ok {
		return
	}
	strs := []string{level, msg}
	for _, field := range fields {
		strs = append(strs, fmt.Sprint(field))
	}
	select {
	case ch <- strings.Join(strs, " "):
	default:
	}
}
