// Package resp implements the minimal subset of the RESP2/RESP3 wire
// protocol this client needs: encoding a command into a request array,
// and decoding the reply stream back into Go values. It is the
// CommandCodec collaborator: every other package treats a command as
// already-serialized bytes, and only resp knows the wire format.
package resp

import "strconv"

// Command is a single Redis command: a name (possibly containing a
// space, e.g. "CLUSTER MYID") plus its arguments.
type Command struct {
	Name string
	Args []interface{}
}

// AppendCommand serializes cmd as a RESP array of bulk strings onto buf
// and returns the extended slice. It mirrors the teacher's
// AppendRequest almost verbatim: the same per-type fast paths for the
// argument kinds a Redis command actually carries.
func AppendCommand(buf []byte, cmd Command) ([]byte, error) {
	space := -1
	for i := 0; i < len(cmd.Name); i++ {
		if cmd.Name[i] == ' ' {
			space = i
			break
		}
	}
	if space == -1 {
		buf = appendHead(buf, '*', int64(len(cmd.Args)+1))
		buf = appendBulkString(buf, cmd.Name)
	} else {
		buf = appendHead(buf, '*', int64(len(cmd.Args)+2))
		buf = appendBulkString(buf, cmd.Name[:space])
		buf = appendBulkString(buf, cmd.Name[space+1:])
	}
	for _, val := range cmd.Args {
		var err error
		buf, err = appendArg(buf, val)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// AppendBatch serializes a sequence of commands back to back, as used
// for the handshake preamble (CLUSTER MYID, HELLO 3) submitted as a
// single pipelined batch.
func AppendBatch(buf []byte, cmds []Command) ([]byte, error) {
	for _, cmd := range cmds {
		var err error
		buf, err = AppendCommand(buf, cmd)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendArg(buf []byte, val interface{}) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return appendBulkString(buf, v), nil
	case []byte:
		return appendBulkBytes(buf, v), nil
	case int:
		return appendBulkInt(buf, int64(v)), nil
	case int8:
		return appendBulkInt(buf, int64(v)), nil
	case int16:
		return appendBulkInt(buf, int64(v)), nil
	case int32:
		return appendBulkInt(buf, int64(v)), nil
	case int64:
		return appendBulkInt(buf, v), nil
	case uint:
		return appendBulkUint(buf, uint64(v)), nil
	case uint8:
		return appendBulkUint(buf, uint64(v)), nil
	case uint16:
		return appendBulkUint(buf, uint64(v)), nil
	case uint32:
		return appendBulkUint(buf, uint64(v)), nil
	case uint64:
		return appendBulkUint(buf, v), nil
	case bool:
		if v {
			return append(buf, "$1\r\n1\r\n"...), nil
		}
		return append(buf, "$1\r\n0\r\n"...), nil
	case float32:
		return appendBulkString(buf, strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case float64:
		return appendBulkString(buf, strconv.FormatFloat(v, 'f', -1, 64)), nil
	case nil:
		return append(buf, "$0\r\n\r\n"...), nil
	default:
		return nil, &ArgumentError{Value: val}
	}
}

// ArgumentError reports a command argument of a type AppendCommand
// does not know how to serialize.
type ArgumentError struct {
	Value interface{}
}

func (e *ArgumentError) Error() string {
	return "resp: unsupported argument type"
}

func appendBulkString(buf []byte, s string) []byte {
	buf = appendHead(buf, '$', int64(len(s)))
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendBulkBytes(buf []byte, b []byte) []byte {
	buf = appendHead(buf, '$', int64(len(b)))
	buf = append(buf, b...)
	return append(buf, '\r', '\n')
}

func appendBulkInt(buf []byte, i int64) []byte {
	var tmp [20]byte
	s := strconv.AppendInt(tmp[:0], i, 10)
	return appendBulkBytes(buf, s)
}

func appendBulkUint(buf []byte, u uint64) []byte {
	var tmp [20]byte
	s := strconv.AppendUint(tmp[:0], u, 10)
	return appendBulkBytes(buf, s)
}

func appendHead(buf []byte, prefix byte, n int64) []byte {
	buf = append(buf, prefix)
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, '\r', '\n')
}
