// Package debugconsole implements an optional readline REPL over the
// running guest state, in the style of usercorn's go/ui.Repl: a
// chzyer/readline instance with a persistent history file, one command per
// line, no multi-line support needed since every command here is a single
// expression.
package debugconsole

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ps2x/ps2xrun/cpu"
)

// State is the narrow slice of runtime state the console inspects. The
// runtime orchestrator implements this directly.
type State interface {
	Context() *cpu.Context
	GSRegisters() map[string]uint64
	ActiveThreads() int32
	GifCopyCount() int64
	CodeRegionCount() int
	RequestStop()
}

// Console is a readline REPL exposing regs/gs/dma/mods/threads/quit
// commands over a State.
type Console struct {
	state   State
	rl      *readline.Instance
	history string
}

// New builds a Console. historyPath may be "" to disable history
// persistence (matching usercorn's repl fallback when the cache directory
// can't be created).
func New(state State, historyPath string) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ps2x> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath,
	})
	if err != nil {
		return nil, err
	}
	return &Console{state: state, rl: rl, history: historyPath}, nil
}

// Run drives the REPL loop synchronously until the user quits or closes
// stdin. Intended to be run on its own goroutine by the caller.
func (c *Console) Run() {
	defer c.rl.Close()
	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c.exec(line) {
			return
		}
	}
}

func (c *Console) exec(line string) (quit bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	switch cmd {
	case "regs":
		c.printRegs()
	case "gs":
		c.printGS()
	case "dma":
		fmt.Fprintf(c.rl.Stdout(), "gif_copy_count=%d\n", c.state.GifCopyCount())
	case "mods":
		fmt.Fprintf(c.rl.Stdout(), "registered code regions=%d\n", c.state.CodeRegionCount())
	case "threads":
		fmt.Fprintf(c.rl.Stdout(), "active_threads=%d\n", c.state.ActiveThreads())
	case "quit", "exit":
		c.state.RequestStop()
		return true
	default:
		fmt.Fprintf(c.rl.Stderr(), "unknown command %q (try regs, gs, dma, mods, threads, quit)\n", cmd)
	}
	return false
}

func (c *Console) printRegs() {
	ctx := c.state.Context()
	out := c.rl.Stdout()
	fmt.Fprintf(out, "pc=0x%08x\n", ctx.PC)
	for i := 0; i < 32; i++ {
		r := ctx.GPR(i)
		fmt.Fprintf(out, "%-3s=0x%08x ", cpu.GPRName[i], r.U32())
		if i%4 == 3 {
			fmt.Fprintln(out)
		}
	}
}

func (c *Console) printGS() {
	regs := c.state.GSRegisters()
	names := make([]string, 0, len(regs))
	for name := range regs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := c.rl.Stdout()
	for _, name := range names {
		fmt.Fprintf(out, "%-10s= 0x%016x\n", name, regs[name])
	}
}
