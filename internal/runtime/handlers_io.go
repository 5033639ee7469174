package runtime

import (
	"strconv"
	"strings"
)

func readCString(c *Call, addr uint32) (string, error) {
	var sb strings.Builder
	for i := uint32(0); ; i++ {
		b, err := c.Mem.GetByte(addr + i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

// Host open-file flags, passed through to HostState.OpenFile verbatim;
// the meaning is the caller's (C runtime) convention, not this module's.
const (
	FlagReadOnly  int32 = 0x000
	FlagWriteOnly int32 = 0x001
	FlagCreate    int32 = 0x040
	FlagTrunc     int32 = 0x200
	FlagAppend    int32 = 0x400
)

func modeFlags(mode string) int32 {
	switch {
	case strings.HasPrefix(mode, "a"):
		return FlagAppend | FlagCreate
	case strings.HasPrefix(mode, "r"):
		return FlagReadOnly
	default:
		return FlagWriteOnly | FlagCreate | FlagTrunc
	}
}

var putsHandler = &Handler{
	Name: "puts",
	Run: func(c *Call) (int32, error) {
		s, err := readCString(c, uint32(c.Arg(0)))
		if err != nil {
			return -1, nil
		}
		c.Host.Log().Info("puts", "text", s)
		return int32(len(s)), nil
	},
}

var printfHandler = &Handler{
	Name: "printf",
	Run: func(c *Call) (int32, error) {
		format, err := readCString(c, uint32(c.Arg(0)))
		if err != nil {
			return -1, nil
		}
		// Argument substitution is a replaceable leaf (spec.md §1: each
		// handler's host behavior, not the interception mechanism, is out
		// of scope); the format string is what gets logged.
		c.Host.Log().Info("printf", "format", format)
		return int32(len(format)), nil
	},
}

var strtolHandler = &Handler{
	Name: "strtol",
	Run: func(c *Call) (int32, error) {
		s, err := readCString(c, uint32(c.Arg(0)))
		if err != nil {
			return 0, nil
		}
		base := int(c.Arg(2))
		if base == 0 {
			base = 10
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), base, 32)
		if err != nil {
			return 0, nil
		}
		return int32(v), nil
	},
}

var strtofHandler = &Handler{
	Name: "strtof",
	Run: func(c *Call) (int32, error) {
		s, err := readCString(c, uint32(c.Arg(0)))
		if err != nil {
			return 0, nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return 0, nil
		}
		// strtof returns a float, carried back in fa0 rather than a0.
		c.Core.SetF32(10, float32(v))
		return 0, nil
	},
}

var strtokHandler = &Handler{
	Name: "strtok",
	Run: func(c *Call) (int32, error) {
		// strtok keeps static state across calls in C; this module treats
		// each call as a single-shot split of the string passed in,
		// sufficient for the programs this simulator runs (spec.md §1
		// places per-syscall emulation fidelity out of scope).
		addr := uint32(c.Arg(0))
		s, err := readCString(c, addr)
		if err != nil {
			return 0, nil
		}
		sep, err := readCString(c, uint32(c.Arg(1)))
		if err != nil || sep == "" {
			return int32(addr), nil
		}
		idx := strings.IndexAny(s, sep)
		if idx < 0 {
			return int32(addr), nil
		}
		if err := c.Mem.PutByte(addr+uint32(idx), 0); err != nil {
			return 0, nil
		}
		return int32(addr), nil
	},
}

var fopenHandler = &Handler{
	Name: "fopen",
	Run: func(c *Call) (int32, error) {
		path, err := readCString(c, uint32(c.Arg(0)))
		if err != nil {
			return 0, nil
		}
		mode, err := readCString(c, uint32(c.Arg(1)))
		if err != nil {
			mode = "r"
		}
		fd, err := c.Host.OpenFile(path, modeFlags(mode))
		if err != nil {
			return 0, nil
		}
		return fd, nil
	},
}

var openHandler = &Handler{
	Name: "open",
	Run: func(c *Call) (int32, error) {
		path, err := readCString(c, uint32(c.Arg(0)))
		if err != nil {
			return -1, nil
		}
		fd, err := c.Host.OpenFile(path, c.Arg(1))
		if err != nil {
			return -1, nil
		}
		return fd, nil
	},
}

var readHandler = &Handler{
	Name: "read",
	Run: func(c *Call) (int32, error) {
		fd := c.Arg(0)
		addr := uint32(c.Arg(1))
		buf := make([]byte, c.Arg(2))
		got, err := c.Host.ReadFile(fd, buf)
		if err != nil {
			return -1, nil
		}
		if err := c.Mem.PutBytes(addr, buf[:got]); err != nil {
			return -1, nil
		}
		return got, nil
	},
}

var rewindHandler = &Handler{
	Name: "rewind",
	Run: func(c *Call) (int32, error) {
		_ = c.Host.RewindFile(c.Arg(0))
		return 0, nil
	},
}

var fgetsHandler = &Handler{
	Name: "fgets",
	Run: func(c *Call) (int32, error) {
		addr := uint32(c.Arg(0))
		size := c.Arg(1)
		fd := c.Arg(2)
		buf := make([]byte, size)
		got, err := c.Host.ReadFile(fd, buf)
		if err != nil || got == 0 {
			return 0, nil
		}
		if err := c.Mem.PutBytes(addr, buf[:got]); err != nil {
			return 0, nil
		}
		return int32(addr), nil
	},
}

var fwriteHandler = &Handler{
	Name: "fwrite",
	Run: func(c *Call) (int32, error) {
		addr := uint32(c.Arg(0))
		size := c.Arg(1)
		nmemb := c.Arg(2)
		fd := c.Arg(3)
		if size == 0 {
			return 0, nil
		}
		data, err := c.Mem.GetBytes(addr, uint32(size*nmemb))
		if err != nil {
			return 0, nil
		}
		n, err := c.Host.WriteFile(fd, data)
		if err != nil {
			return 0, nil
		}
		return n / size, nil
	},
}
