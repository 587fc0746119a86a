package reduce_test

import (
	"encoding/binary"
	"fmt"
)

// employeeByteCodec and deptByteCodec are minimal codec.ByteCodec
// implementations so the hash join tests can spill employee/dept values
// through codec.NewByteStreamCodec without pulling in a real serialization
// library just for test fixtures.

type employeeByteCodec struct{}

func (employeeByteCodec) EncodeBytes(e employee) ([]byte, error) {
	b := make([]byte, 16+len(e.name))
	binary.BigEndian.PutUint64(b[0:8], uint64(e.id))
	binary.BigEndian.PutUint64(b[8:16], uint64(e.dept))
	copy(b[16:], e.name)
	return b, nil
}

func (employeeByteCodec) DecodeBytes(b []byte) (employee, error) {
	if len(b) < 16 {
		return employee{}, fmt.Errorf("short employee record: %d bytes", len(b))
	}
	return employee{
		id:   int64(binary.BigEndian.Uint64(b[0:8])),
		dept: int64(binary.BigEndian.Uint64(b[8:16])),
		name: string(b[16:]),
	}, nil
}

type deptByteCodec struct{}

func (deptByteCodec) EncodeBytes(d dept) ([]byte, error) {
	b := make([]byte, 8+len(d.name))
	binary.BigEndian.PutUint64(b[0:8], uint64(d.id))
	copy(b[8:], d.name)
	return b, nil
}

func (deptByteCodec) DecodeBytes(b []byte) (dept, error) {
	if len(b) < 8 {
		return dept{}, fmt.Errorf("short dept record: %d bytes", len(b))
	}
	return dept{
		id:   int64(binary.BigEndian.Uint64(b[0:8])),
		name: string(b[8:]),
	}, nil
}
