// Package protocol defines the line-delimited JSON messages the connector
// writes to stdout when run as a one-shot command.
package protocol

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/i474232898/source-open-meteo/internal/openmeteo"
)

// Type tags a Message.
type Type string

const (
	TypeSpec             Type = "SPEC"
	TypeConnectionStatus Type = "CONNECTION_STATUS"
	TypeCatalog          Type = "CATALOG"
	TypeRecord           Type = "RECORD"
	TypeLog              Type = "LOG"
)

// Status of a connection check.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Message is one output line. Exactly one payload field is set, matching Type.
type Message struct {
	Type             Type              `json:"type"`
	Spec             *Spec             `json:"spec,omitempty"`
	ConnectionStatus *ConnectionStatus `json:"connectionStatus,omitempty"`
	Catalog          *Catalog          `json:"catalog,omitempty"`
	Record           *RecordMessage    `json:"record,omitempty"`
	Log              *LogMessage       `json:"log,omitempty"`
}

type ConnectionStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type RecordMessage struct {
	Stream    string           `json:"stream"`
	Data      openmeteo.Record `json:"data"`
	EmittedAt int64            `json:"emitted_at"` // unix millis
}

// LevelError marks a log message reporting a failed operation.
const LevelError = "ERROR"

type LogMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// StatusFromCheck converts a check outcome into a connection status.
func StatusFromCheck(res openmeteo.CheckResult) ConnectionStatus {
	if res.Succeeded {
		return ConnectionStatus{Status: StatusSucceeded}
	}
	return ConnectionStatus{Status: StatusFailed, Message: res.Message}
}

// Writer serialises messages, one per line. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w), now: time.Now}
}

func (w *Writer) Write(msg Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(msg)
}

func (w *Writer) WriteRecord(stream string, rec openmeteo.Record) error {
	return w.Write(Message{
		Type: TypeRecord,
		Record: &RecordMessage{
			Stream:    stream,
			Data:      rec,
			EmittedAt: w.now().UnixMilli(),
		},
	})
}

func (w *Writer) WriteStatus(res openmeteo.CheckResult) error {
	status := StatusFromCheck(res)
	return w.Write(Message{Type: TypeConnectionStatus, ConnectionStatus: &status})
}

func (w *Writer) WriteCatalog(c Catalog) error {
	return w.Write(Message{Type: TypeCatalog, Catalog: &c})
}

func (w *Writer) WriteSpec(s Spec) error {
	return w.Write(Message{Type: TypeSpec, Spec: &s})
}

func (w *Writer) WriteLog(level, message string) error {
	return w.Write(Message{Type: TypeLog, Log: &LogMessage{Level: level, Message: message}})
}
