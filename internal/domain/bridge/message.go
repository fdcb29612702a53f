package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// KindConsole is the only message kind the bridge emits.
const KindConsole = "console"

// Method is a console severity.
type Method string

const (
	MethodLog   Method = "log"
	MethodInfo  Method = "info"
	MethodWarn  Method = "warn"
	MethodError Method = "error"
)

// Methods lists the intercepted severities in bridge order.
var Methods = []Method{MethodLog, MethodInfo, MethodWarn, MethodError}

// Valid reports whether m is one of the four intercepted severities.
func (m Method) Valid() bool {
	switch m {
	case MethodLog, MethodInfo, MethodWarn, MethodError:
		return true
	}
	return false
}

var (
	// ErrNotDiagnostic marks cross-boundary traffic that is not a bridge
	// message (user scripts may post arbitrary data to the parent).
	ErrNotDiagnostic = errors.New("not a diagnostic message")
	// ErrMalformed marks a console message that fails schema validation.
	ErrMalformed = errors.New("malformed diagnostic message")
)

// Message is the wire form posted from the sandbox to the host. Field
// names are part of the external contract.
type Message struct {
	Kind      string   `json:"kind"`
	Method    Method   `json:"method"`
	Arguments []string `json:"arguments"`
}

// Record is a diagnostic record held in a session log.
type Record struct {
	Method    Method    `json:"method"`
	Arguments []string  `json:"arguments"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a console message.
func NewMessage(method Method, args ...string) Message {
	if args == nil {
		args = []string{}
	}
	return Message{Kind: KindConsole, Method: method, Arguments: args}
}

// Record stamps the message with its receive time.
func (m Message) Record(at time.Time) Record {
	args := make([]string, len(m.Arguments))
	copy(args, m.Arguments)
	return Record{Method: m.Method, Arguments: args, Timestamp: at}
}

// Validate checks the message against the schema.
func (m Message) Validate() error {
	if m.Kind != KindConsole {
		return ErrNotDiagnostic
	}
	if !m.Method.Valid() {
		return fmt.Errorf("%w: unknown method %q", ErrMalformed, m.Method)
	}
	return nil
}

// Decode parses and validates one posted message.
func Decode(raw []byte) (Message, error) {
	var envelope struct {
		Kind      *string       `json:"kind"`
		Method    Method        `json:"method"`
		Arguments []interface{} `json:"arguments"`
	}
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrNotDiagnostic, err)
	}
	if envelope.Kind == nil {
		return Message{}, ErrNotDiagnostic
	}

	msg := Message{
		Kind:      *envelope.Kind,
		Method:    envelope.Method,
		Arguments: make([]string, 0, len(envelope.Arguments)),
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}

	// The bridge always sends text; anything else came from a foreign
	// sender imitating the schema and is coerced rather than rejected.
	for _, arg := range envelope.Arguments {
		switch v := arg.(type) {
		case string:
			msg.Arguments = append(msg.Arguments, v)
		case nil:
			msg.Arguments = append(msg.Arguments, "null")
		default:
			text, err := sonic.MarshalString(v)
			if err != nil {
				text = fmt.Sprint(v)
			}
			msg.Arguments = append(msg.Arguments, text)
		}
	}
	return msg, nil
}

// Encode renders the message in its wire form.
func Encode(m Message) ([]byte, error) {
	if m.Arguments == nil {
		m.Arguments = []string{}
	}
	data, err := sonic.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Text joins the record arguments the way a console line displays them.
func (r Record) Text() string {
	return strings.Join(r.Arguments, " ")
}
