package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// flagSet wraps flag.FlagSet to add uint32, uint64 and hex flags.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior that
// writes usage and errors to out.
func newCustomFlagSet(name string, out io.Writer) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return &flagSet{FlagSet: fs}
}

// Uint64Var defines a uint64 flag.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uintValue{p: p, bits: 64}, name, usage)
	*p = value
}

// Uint32Var defines a uint32 flag.
func (fs *flagSet) Uint32Var(p *uint32, name string, value uint32, usage string) {
	v := uint64(value)
	fs.FlagSet.Var(&uintValue{p: &v, bits: 32, set: func(n uint64) { *p = uint32(n) }}, name, usage)
	*p = value
}

// HexVar defines a flag holding 0x-prefixed hex bytes.
func (fs *flagSet) HexVar(p *hexutil.Bytes, name string, usage string) {
	fs.FlagSet.Var(&hexValue{p: p}, name, usage)
}

// uintValue implements flag.Value for unsigned flags of the given width.
type uintValue struct {
	p    *uint64
	bits int
	set  func(uint64)
}

func (v *uintValue) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uintValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, v.bits)
	if err != nil {
		return fmt.Errorf("invalid uint%d value %q", v.bits, s)
	}
	*v.p = n
	if v.set != nil {
		v.set(n)
	}
	return nil
}

type hexValue struct {
	p *hexutil.Bytes
}

func (v *hexValue) String() string {
	if v.p == nil || *v.p == nil {
		return ""
	}
	return v.p.String()
}

func (v *hexValue) Set(s string) error {
	b, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid hex value %q: %v", s, err)
	}
	*v.p = b
	return nil
}
