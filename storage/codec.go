package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// encoder accumulates MUS-encoded fields in declaration order.
type encoder struct {
	buf []byte
}

func (e *encoder) uint64(v uint64) {
	bs := make([]byte, varint.Uint64.Size(v))
	varint.Uint64.Marshal(v, bs)
	e.buf = append(e.buf, bs...)
}

func (e *encoder) int64(v int64) {
	bs := make([]byte, varint.Int64.Size(v))
	varint.Int64.Marshal(v, bs)
	e.buf = append(e.buf, bs...)
}

func (e *encoder) int(v int) {
	e.int64(int64(v))
}

func (e *encoder) string(v string) {
	bs := make([]byte, ord.String.Size(v))
	ord.String.Marshal(v, bs)
	e.buf = append(e.buf, bs...)
}

func (e *encoder) bool(v bool) {
	bs := make([]byte, ord.Bool.Size(v))
	ord.Bool.Marshal(v, bs)
	e.buf = append(e.buf, bs...)
}

// time is stored as Unix microseconds; the zero time round-trips as zero.
func (e *encoder) time(t time.Time) {
	if t.IsZero() {
		e.int64(0)
		return
	}
	e.int64(t.UnixMicro())
}

func (e *encoder) float32s(v []float32) {
	e.int(len(v))
	for _, f := range v {
		e.uint64(uint64(math.Float32bits(f)))
	}
}

// decoder reads fields back in the order they were encoded.
// The first failure sticks and zero values are returned afterwards.
type decoder struct {
	bs  []byte
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return 0
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return 0
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) int() int {
	return int(d.int64())
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return ""
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return false
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) time() time.Time {
	us := d.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (d *decoder) float32s() []float32 {
	n := d.int()
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.bs) {
		d.fail(ErrTruncatedData)
		return nil
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(uint32(d.uint64()))
	}
	if d.err != nil {
		return nil
	}
	return v
}

// finish reports the sticky error, or an error for trailing bytes the
// record did not consume.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.bs) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(d.bs))
	}
	return nil
}
